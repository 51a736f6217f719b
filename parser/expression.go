package parser

import (
	"strconv"
	"strings"

	"github.com/kyleconroy/tdlineage/ast"
	"github.com/kyleconroy/tdlineage/token"
)

// Operator precedence, lowest to highest.
const (
	LOWEST      = iota
	PREC_OR     // OR
	PREC_AND    // AND
	PREC_NOT    // NOT
	PREC_CMP    // = != < <= > >= IN LIKE BETWEEN IS
	PREC_ADD    // + -
	PREC_MUL    // * / %
	PREC_UNARY  // unary - / +
	PREC_CONCAT // ||
)

func precedenceOf(t token.Token) int {
	switch t {
	case token.OR:
		return PREC_OR
	case token.AND:
		return PREC_AND
	case token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE,
		token.IN, token.LIKE, token.BETWEEN, token.IS:
		return PREC_CMP
	case token.PLUS, token.MINUS:
		return PREC_ADD
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return PREC_MUL
	case token.CONCAT:
		return PREC_CONCAT
	default:
		return LOWEST
	}
}

// parseExpression implements precedence-climbing over binary and postfix
// operators, dispatching to parsePrefix for the leaf/prefix forms.
func (p *Parser) parseExpression(minPrec int) ast.Expression {
	left := p.parsePrefix()

	for {
		// `expr NOT [IN|LIKE|BETWEEN]` produces the dedicated InExpr/
		// LikeExpr/BetweenExpr node with its Not flag set.
		if p.currentIs(token.NOT) && PREC_CMP >= minPrec {
			pos := p.pos()
			p.nextToken()
			left = p.parseNotSuffix(left, pos)
			continue
		}

		if p.currentIs(token.IN) && PREC_CMP >= minPrec {
			left = p.parseIn(left, false)
			continue
		}
		if p.currentIs(token.LIKE) && PREC_CMP >= minPrec {
			left = p.parseLike(left, false)
			continue
		}
		if p.currentIs(token.BETWEEN) && PREC_CMP >= minPrec {
			left = p.parseBetween(left, false)
			continue
		}
		if p.currentIs(token.IS) && PREC_CMP >= minPrec {
			left = p.parseIsNull(left)
			continue
		}

		prec := precedenceOf(p.current.Token)
		if prec == LOWEST || prec < minPrec {
			break
		}

		op := p.current
		p.nextToken()
		right := p.parseExpression(prec + 1)
		left = &ast.BinaryExpr{Position: op.Pos, Left: left, Op: opSymbol(op.Token, op.Value), Right: right}
	}

	return left
}

func opSymbol(t token.Token, raw string) string {
	switch t {
	case token.EQ:
		return "="
	case token.NEQ:
		return raw
	default:
		return raw
	}
}

// parseNotSuffix handles `expr NOT IN (...)`, `expr NOT LIKE ...`,
// `expr NOT BETWEEN ... AND ...`.
func (p *Parser) parseNotSuffix(left ast.Expression, pos token.Position) ast.Expression {
	switch p.current.Token {
	case token.IN:
		return p.parseIn(left, true)
	case token.LIKE:
		return p.parseLike(left, true)
	case token.BETWEEN:
		return p.parseBetween(left, true)
	default:
		// Bare NOT applied to whatever follows; not expected mid-expression
		// in practice but kept for robustness.
		operand := p.parseExpression(PREC_NOT)
		return &ast.NotExpr{Position: pos, Expr: operand}
	}
}

func (p *Parser) parseIn(left ast.Expression, not bool) ast.Expression {
	pos := p.pos()
	p.expect(token.IN)
	p.expect(token.LPAREN)

	in := &ast.InExpr{Position: pos, Expr: left, Not: not}
	if p.currentIs(token.SELECT) || p.currentIs(token.WITH) {
		sub := &ast.Subquery{Position: p.pos(), Query: p.parseSelect()}
		in.Query = sub
	} else if !p.currentIs(token.RPAREN) {
		in.List = p.parseExpressionList()
	}
	p.expect(token.RPAREN)
	return in
}

func (p *Parser) parseLike(left ast.Expression, not bool) ast.Expression {
	pos := p.pos()
	p.expect(token.LIKE)
	pattern := p.parseExpression(PREC_CMP + 1)
	return &ast.LikeExpr{Position: pos, Expr: left, Not: not, Pattern: pattern}
}

func (p *Parser) parseBetween(left ast.Expression, not bool) ast.Expression {
	pos := p.pos()
	p.expect(token.BETWEEN)
	low := p.parseExpression(PREC_ADD)
	p.expect(token.AND)
	high := p.parseExpression(PREC_ADD)
	return &ast.BetweenExpr{Position: pos, Expr: left, Not: not, Low: low, High: high}
}

func (p *Parser) parseIsNull(left ast.Expression) ast.Expression {
	pos := p.pos()
	p.expect(token.IS)
	not := false
	if p.currentIs(token.NOT) {
		not = true
		p.nextToken()
	}
	p.expect(token.NULL)
	return &ast.IsNullExpr{Position: pos, Expr: left, Not: not}
}

// parsePrefix parses a leaf expression: literals, columns, parens/tuples,
// unary operators, NOT, EXISTS, CASE, CAST, EXTRACT, function calls.
func (p *Parser) parsePrefix() ast.Expression {
	pos := p.pos()

	switch p.current.Token {
	case token.NOT:
		p.nextToken()
		operand := p.parseExpression(PREC_NOT)
		return &ast.NotExpr{Position: pos, Expr: operand}
	case token.MINUS, token.PLUS:
		op := p.current.Value
		p.nextToken()
		operand := p.parseExpression(PREC_UNARY)
		return &ast.BinaryExpr{Position: pos, Left: &ast.Literal{Position: pos, Type: ast.LiteralInt, Value: int64(0)}, Op: op, Right: operand}
	case token.EXISTS:
		p.nextToken()
		p.expect(token.LPAREN)
		sub := &ast.Subquery{Position: pos, Query: p.parseSelect()}
		p.expect(token.RPAREN)
		return &ast.ExistsExpr{Position: pos, Query: sub}
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		return p.parseCast()
	case token.EXTRACT:
		return p.parseExtract()
	case token.LPAREN:
		return p.parseParenOrTuple()
	case token.STRING:
		v := p.current.Value
		p.nextToken()
		return &ast.Literal{Position: pos, Type: ast.LiteralString, Value: v}
	case token.NUMBER:
		return p.parseNumberLiteral()
	case token.NULL:
		p.nextToken()
		return &ast.Literal{Position: pos, Type: ast.LiteralNull, Value: nil}
	case token.ASTERISK:
		p.nextToken()
		return &ast.Column{Position: pos, Star: true}
	default:
		return p.parseIdentOrCall()
	}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	pos := p.pos()
	raw := p.current.Value
	p.nextToken()
	if strings.ContainsAny(raw, ".eE") {
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			return &ast.Literal{Position: pos, Type: ast.LiteralFloat, Value: f}
		}
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return &ast.Literal{Position: pos, Type: ast.LiteralInt, Value: i}
	}
	f, _ := strconv.ParseFloat(raw, 64)
	return &ast.Literal{Position: pos, Type: ast.LiteralFloat, Value: f}
}

func (p *Parser) parseParenOrTuple() ast.Expression {
	pos := p.pos()
	p.expect(token.LPAREN)
	if p.currentIs(token.SELECT) || p.currentIs(token.WITH) {
		sub := &ast.Subquery{Position: pos, Query: p.parseSelect()}
		p.expect(token.RPAREN)
		return sub
	}
	first := p.parseExpression(LOWEST)
	if p.currentIs(token.COMMA) {
		exprs := []ast.Expression{first}
		for p.currentIs(token.COMMA) {
			p.nextToken()
			exprs = append(exprs, p.parseExpression(LOWEST))
		}
		p.expect(token.RPAREN)
		return &ast.Tuple{Position: pos, Expressions: exprs}
	}
	p.expect(token.RPAREN)
	return &ast.Paren{Position: pos, Inner: first}
}

func (p *Parser) parseCase() ast.Expression {
	pos := p.pos()
	p.expect(token.CASE)
	ce := &ast.CaseExpr{Position: pos}
	if !p.currentIs(token.WHEN) {
		ce.Operand = p.parseExpression(LOWEST)
	}
	for p.currentIs(token.WHEN) {
		wpos := p.pos()
		p.nextToken()
		cond := p.parseExpression(LOWEST)
		p.expect(token.THEN)
		result := p.parseExpression(LOWEST)
		ce.Whens = append(ce.Whens, &ast.WhenClause{Position: wpos, Condition: cond, Result: result})
	}
	if p.currentIs(token.ELSE) {
		p.nextToken()
		ce.Else = p.parseExpression(LOWEST)
	}
	p.expect(token.END)
	return ce
}

func (p *Parser) parseCast() ast.Expression {
	pos := p.pos()
	p.expect(token.CAST)
	p.expect(token.LPAREN)
	expr := p.parseExpression(LOWEST)
	p.expect(token.AS)
	typ := p.parseTypeName()
	p.expect(token.RPAREN)

	cast := &ast.CastExpr{Position: pos, Expr: expr, Type: typ}

	// CAST('...' AS DATE|TIME|TIMESTAMP) over a string literal renders the
	// whole CAST expression verbatim as a DateTimeLiteral rather than
	// reducing it to the bare underlying string.
	upper := strings.ToUpper(typ)
	if strings.HasPrefix(upper, "DATE") || strings.HasPrefix(upper, "TIME") || strings.HasPrefix(upper, "TIMESTAMP") {
		if lit, ok := expr.(*ast.Literal); ok && lit.Type == ast.LiteralString {
			rendered := "CAST(" + "'" + toStringValue(lit.Value) + "'" + " AS " + typ + ")"
			return &ast.DateTimeLiteral{Position: pos, Rendered: rendered}
		}
	}
	return cast
}

func toStringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func (p *Parser) parseTypeName() string {
	var sb strings.Builder
	sb.WriteString(p.parseIdentName())
	if p.currentIs(token.LPAREN) {
		sb.WriteString("(")
		p.nextToken()
		for !p.currentIs(token.RPAREN) && !p.currentIs(token.EOF) {
			sb.WriteString(p.current.Value)
			p.nextToken()
		}
		p.expect(token.RPAREN)
		sb.WriteString(")")
	}
	return sb.String()
}

func (p *Parser) parseExtract() ast.Expression {
	pos := p.pos()
	p.expect(token.EXTRACT)
	p.expect(token.LPAREN)
	unit := p.parseIdentName()
	p.expect(token.FROM)
	from := p.parseExpression(LOWEST)
	p.expect(token.RPAREN)
	return &ast.ExtractExpr{Position: pos, Unit: strings.ToUpper(unit), From: from}
}

// parseIdentOrCall parses a bare identifier, a dotted column reference
// (`t.c`, `t.*`), a Teradata literal-with-type-prefix (DATE '...', TIME
// '...', TIMESTAMP '...'), or a function call.
func (p *Parser) parseIdentOrCall() ast.Expression {
	pos := p.pos()

	name := p.current.Value
	upperName := strings.ToUpper(name)
	if (upperName == "DATE" || upperName == "TIME" || upperName == "TIMESTAMP") && p.peekIs(token.STRING) {
		p.nextToken()
		lit := p.current.Value
		p.nextToken()
		return &ast.DateTimeLiteral{Position: pos, Rendered: upperName + " '" + lit + "'"}
	}

	p.nextToken()

	if p.currentIs(token.LPAREN) {
		return p.parseFunctionCall(pos, name)
	}

	// CURRENT_DATE/CURRENT_TIMESTAMP/CURRENT_TIME (and their synonyms) are
	// always written without parentheses; treat the bare keyword the same
	// as a call with no arguments rather than mistaking it for a column.
	switch upperName {
	case "CURRENT_DATE", "CURDATE", "CURRENTDATE", "CURRENT_TIMESTAMP", "CURRENT_TIME":
		return &ast.FunctionCall{Position: pos, Name: name}
	}

	if p.currentIs(token.DOT) {
		p.nextToken()
		if p.currentIs(token.ASTERISK) {
			p.nextToken()
			return &ast.Column{Position: pos, Table: name, Star: true}
		}
		colName := p.current.Value
		p.nextToken()
		if p.currentIs(token.LPAREN) {
			// table.func(...) — treat as a plain function call, dropping the
			// qualifier (Teradata does not schema-qualify scalar functions
			// in ways relevant to lineage).
			return p.parseFunctionCall(pos, colName)
		}
		return &ast.Column{Position: pos, Table: name, Name: colName}
	}

	return &ast.Column{Position: pos, Name: name}
}

func (p *Parser) parseFunctionCall(pos token.Position, name string) ast.Expression {
	p.expect(token.LPAREN)
	fc := &ast.FunctionCall{Position: pos, Name: name}
	if p.currentIs(token.ASTERISK) {
		// COUNT(*)
		p.nextToken()
		fc.Arguments = []ast.Expression{&ast.Column{Position: pos, Star: true}}
	} else if p.currentIs(token.DISTINCT) {
		p.nextToken()
		fc.Arguments = p.parseExpressionList()
	} else if !p.currentIs(token.RPAREN) {
		fc.Arguments = p.parseExpressionList()
	}
	p.expect(token.RPAREN)
	return fc
}
