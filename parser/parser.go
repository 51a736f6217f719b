// Package parser implements a parser for Teradata SQL.
package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kyleconroy/tdlineage/ast"
	"github.com/kyleconroy/tdlineage/lexer"
	"github.com/kyleconroy/tdlineage/token"
)

// Parser parses Teradata SQL statements.
type Parser struct {
	lexer   *lexer.Lexer
	current lexer.Item
	peek    lexer.Item
	errors  []error

	// scope is the SELECT currently being parsed, used to set Parent links
	// on nested SELECTs as they're constructed.
	scope *ast.SelectQuery
}

// New creates a new Parser from an io.Reader.
func New(r io.Reader) *Parser {
	p := &Parser{
		lexer: lexer.New(r),
	}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.current = p.peek
	for {
		p.peek = p.lexer.NextToken()
		if p.peek.Token != token.COMMENT && p.peek.Token != token.WHITESPACE {
			break
		}
	}
}

func (p *Parser) currentIs(t token.Token) bool {
	return p.current.Token == t
}

func (p *Parser) peekIs(t token.Token) bool {
	return p.peek.Token == t
}

func (p *Parser) pos() token.Position {
	return p.current.Pos
}

func (p *Parser) expect(t token.Token) bool {
	if p.currentIs(t) {
		p.nextToken()
		return true
	}
	p.errors = append(p.errors, fmt.Errorf("expected %s, got %s (%q) at line %d, column %d",
		t, p.current.Token, p.current.Value, p.current.Pos.Line, p.current.Pos.Column))
	return false
}

// Parse parses SQL statements from the input, one per `;`-separated chunk.
func Parse(ctx context.Context, r io.Reader) ([]ast.Statement, error) {
	p := New(r)
	return p.ParseStatements(ctx)
}

// ParseStatements parses multiple SQL statements.
func (p *Parser) ParseStatements(ctx context.Context) ([]ast.Statement, error) {
	var statements []ast.Statement

	for !p.currentIs(token.EOF) {
		select {
		case <-ctx.Done():
			return statements, ctx.Err()
		default:
		}

		stmt := p.parseStatement()
		if stmt != nil {
			statements = append(statements, stmt)
		}

		for p.currentIs(token.SEMICOLON) {
			p.nextToken()
		}
	}

	if len(p.errors) > 0 {
		return statements, fmt.Errorf("parse errors: %v", p.errors)
	}
	return statements, nil
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.current.Token {
	case token.SELECT, token.WITH:
		return p.parseSelect()
	case token.INSERT:
		return p.parseInsert()
	case token.UPDATE:
		return p.parseUpdate()
	case token.DELETE:
		return p.parseDelete()
	case token.MERGE:
		return p.parseMerge()
	case token.CREATE:
		return p.parseCreate()
	case token.CALL:
		return p.parseCall()
	default:
		p.errors = append(p.errors, fmt.Errorf("unexpected token %s (%q) at line %d, column %d",
			p.current.Token, p.current.Value, p.current.Pos.Line, p.current.Pos.Column))
		// Skip to the next statement boundary so one bad statement doesn't
		// swallow the rest of the input.
		for !p.currentIs(token.SEMICOLON) && !p.currentIs(token.EOF) {
			p.nextToken()
		}
		return nil
	}
}

// -----------------------------------------------------------------------------
// SELECT

func (p *Parser) parseSelect() *ast.SelectQuery {
	pos := p.pos()
	sel := &ast.SelectQuery{Position: pos, Parent: p.scope}

	prevScope := p.scope
	p.scope = sel
	defer func() { p.scope = prevScope }()

	if p.currentIs(token.WITH) {
		p.nextToken()
		sel.With = p.parseWithElements()
	}

	if !p.expect(token.SELECT) {
		return sel
	}
	if p.currentIs(token.DISTINCT) {
		sel.Distinct = true
		p.nextToken()
	}
	if p.currentIs(token.TOP) {
		p.nextToken()
		sel.Top = p.parseExpression(LOWEST)
	}

	sel.Columns = p.parseSelectColumns()

	if p.currentIs(token.FROM) {
		p.nextToken()
		sel.From = p.parseFromClause()
	}

	if p.currentIs(token.WHERE) {
		p.nextToken()
		sel.Where = p.parseExpression(LOWEST)
	}

	if p.currentIs(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		sel.GroupBy = p.parseExpressionList()
	}

	if p.currentIs(token.HAVING) {
		p.nextToken()
		sel.Having = p.parseExpression(LOWEST)
	}

	if p.currentIs(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		sel.OrderBy = p.parseOrderByElements()
	}

	return sel
}

func (p *Parser) parseWithElements() []*ast.WithElement {
	var elems []*ast.WithElement
	for {
		pos := p.pos()
		name := p.parseIdentName()
		p.expect(token.AS)
		p.expect(token.LPAREN)
		query := p.parseSelect()
		p.expect(token.RPAREN)
		elems = append(elems, &ast.WithElement{Position: pos, Name: name, Query: query})
		if p.currentIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	return elems
}

func (p *Parser) parseSelectColumns() []ast.Expression {
	var cols []ast.Expression
	for {
		cols = append(cols, p.parseSelectColumn())
		if p.currentIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	return cols
}

func (p *Parser) parseSelectColumn() ast.Expression {
	pos := p.pos()

	// Bare `*`; `t.*` is parsed by parseIdentOrCall below.
	if p.currentIs(token.ASTERISK) {
		p.nextToken()
		return &ast.Column{Position: pos, Star: true}
	}

	expr := p.parseExpression(LOWEST)

	if p.currentIs(token.AS) {
		p.nextToken()
		alias := p.parseIdentName()
		return &ast.AliasedExpr{Position: pos, Expr: expr, Alias: alias}
	}
	// Implicit alias: `expr alias` with no AS keyword.
	if p.currentIs(token.IDENT) {
		alias := p.parseIdentName()
		return &ast.AliasedExpr{Position: pos, Expr: expr, Alias: alias}
	}
	return expr
}

func (p *Parser) parseFromClause() *ast.TablesInSelectQuery {
	pos := p.pos()
	from := &ast.TablesInSelectQuery{Position: pos}

	first := &ast.TablesInSelectQueryElement{Position: p.pos(), Table: p.parseTableExpression()}
	from.Tables = append(from.Tables, first)

	for {
		join := p.tryParseJoin()
		if join == nil {
			break
		}
		elemPos := p.pos()
		table := p.parseTableExpression()
		join.On, join.Using = p.parseJoinCondition()
		from.Tables = append(from.Tables, &ast.TablesInSelectQueryElement{
			Position: elemPos, Table: table, Join: join,
		})
	}

	return from
}

func (p *Parser) tryParseJoin() *ast.TableJoin {
	pos := p.pos()
	switch p.current.Token {
	case token.JOIN:
		p.nextToken()
		return &ast.TableJoin{Position: pos, Type: ast.JoinInner}
	case token.INNER:
		p.nextToken()
		p.expect(token.JOIN)
		return &ast.TableJoin{Position: pos, Type: ast.JoinInner}
	case token.LEFT:
		p.nextToken()
		if p.currentIs(token.OUTER) {
			p.nextToken()
		}
		p.expect(token.JOIN)
		return &ast.TableJoin{Position: pos, Type: ast.JoinLeft}
	case token.RIGHT:
		p.nextToken()
		if p.currentIs(token.OUTER) {
			p.nextToken()
		}
		p.expect(token.JOIN)
		return &ast.TableJoin{Position: pos, Type: ast.JoinRight}
	case token.FULL:
		p.nextToken()
		if p.currentIs(token.OUTER) {
			p.nextToken()
		}
		p.expect(token.JOIN)
		return &ast.TableJoin{Position: pos, Type: ast.JoinFull}
	case token.CROSS:
		p.nextToken()
		p.expect(token.JOIN)
		return &ast.TableJoin{Position: pos, Type: ast.JoinCross}
	case token.COMMA:
		// Implicit cross join via comma-separated FROM list.
		p.nextToken()
		return &ast.TableJoin{Position: pos, Type: ast.JoinCross}
	default:
		return nil
	}
}

func (p *Parser) parseJoinCondition() (ast.Expression, []string) {
	if p.currentIs(token.ON) {
		p.nextToken()
		return p.parseExpression(LOWEST), nil
	}
	if p.currentIs(token.USING) {
		p.nextToken()
		p.expect(token.LPAREN)
		var cols []string
		for {
			cols = append(cols, p.parseIdentName())
			if p.currentIs(token.COMMA) {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RPAREN)
		return nil, cols
	}
	return nil, nil
}

func (p *Parser) parseTableExpression() *ast.TableExpression {
	pos := p.pos()
	te := &ast.TableExpression{Position: pos}

	if p.currentIs(token.LPAREN) {
		p.nextToken()
		sub := &ast.Subquery{Position: pos, Query: p.parseSelect()}
		p.expect(token.RPAREN)
		te.Table = sub
	} else {
		te.Table = p.parseTableIdentifier()
	}

	if p.currentIs(token.AS) {
		p.nextToken()
		te.Alias = p.parseIdentName()
	} else if p.currentIs(token.IDENT) {
		te.Alias = p.parseIdentName()
	}

	return te
}

// parseTableIdentifier parses `[catalog.][schema.]table`.
func (p *Parser) parseTableIdentifier() *ast.TableIdentifier {
	pos := p.pos()
	parts := []string{p.parseIdentName()}
	for p.currentIs(token.DOT) {
		p.nextToken()
		parts = append(parts, p.parseIdentName())
	}
	ti := &ast.TableIdentifier{Position: pos}
	switch len(parts) {
	case 1:
		ti.Table = parts[0]
	case 2:
		ti.Schema, ti.Table = parts[0], parts[1]
	default:
		ti.Catalog, ti.Schema, ti.Table = parts[0], parts[1], parts[len(parts)-1]
	}
	return ti
}

func (p *Parser) parseOrderByElements() []*ast.OrderByElement {
	var elems []*ast.OrderByElement
	for {
		pos := p.pos()
		expr := p.parseExpression(LOWEST)
		desc := false
		if p.currentIs(token.DESC) {
			desc = true
			p.nextToken()
		} else if p.currentIs(token.ASC) {
			p.nextToken()
		}
		elems = append(elems, &ast.OrderByElement{Position: pos, Expression: expr, Descending: desc})
		if p.currentIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	return elems
}

// -----------------------------------------------------------------------------
// INSERT / UPDATE / DELETE / MERGE

func (p *Parser) parseInsert() *ast.InsertQuery {
	pos := p.pos()
	p.expect(token.INSERT)
	p.expect(token.INTO)
	table := p.parseTableIdentifier()
	ins := &ast.InsertQuery{Position: pos, Table: table}

	if p.currentIs(token.LPAREN) {
		p.nextToken()
		for {
			ins.Columns = append(ins.Columns, p.parseIdentName())
			if p.currentIs(token.COMMA) {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RPAREN)
	}

	if p.currentIs(token.VALUES) {
		p.nextToken()
		for {
			p.expect(token.LPAREN)
			row := p.parseExpressionList()
			p.expect(token.RPAREN)
			ins.Values = append(ins.Values, row)
			if p.currentIs(token.COMMA) {
				p.nextToken()
				continue
			}
			break
		}
		return ins
	}

	if p.currentIs(token.SELECT) || p.currentIs(token.WITH) {
		ins.Select = p.parseSelect()
	}
	return ins
}

func (p *Parser) parseUpdate() *ast.UpdateQuery {
	pos := p.pos()
	p.expect(token.UPDATE)
	table := p.parseTableIdentifier()
	upd := &ast.UpdateQuery{Position: pos, Table: table}

	p.expect(token.SET)
	for {
		apos := p.pos()
		col := p.parseIdentName()
		p.expect(token.EQ)
		val := p.parseExpression(LOWEST)
		upd.Assignments = append(upd.Assignments, &ast.Assignment{Position: apos, Column: col, Value: val})
		if p.currentIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}

	if p.currentIs(token.FROM) {
		p.nextToken()
		upd.From = p.parseFromClause()
	}

	if p.currentIs(token.WHERE) {
		p.nextToken()
		upd.Where = p.parseExpression(LOWEST)
	}
	return upd
}

func (p *Parser) parseDelete() *ast.DeleteQuery {
	pos := p.pos()
	p.expect(token.DELETE)
	if p.currentIs(token.FROM) {
		p.nextToken()
	}
	table := p.parseTableIdentifier()
	del := &ast.DeleteQuery{Position: pos, Table: table}
	if p.currentIs(token.WHERE) {
		p.nextToken()
		del.Where = p.parseExpression(LOWEST)
	}
	return del
}

// parseMerge parses MERGE INTO target USING source ON cond WHEN MATCHED ... .
func (p *Parser) parseMerge() *ast.MergeQuery {
	pos := p.pos()
	p.expect(token.MERGE)
	p.expect(token.INTO)
	target := p.parseTableIdentifier()
	if p.currentIs(token.AS) {
		p.nextToken()
		target.Alias = p.parseIdentName()
	} else if p.currentIs(token.IDENT) {
		target.Alias = p.parseIdentName()
	}
	merge := &ast.MergeQuery{Position: pos, Target: target}

	p.expect(token.USING)
	merge.Source = p.parseTableExpression()

	p.expect(token.ON)
	merge.On = p.parseExpression(LOWEST)

	for p.currentIs(token.WHEN) {
		merge.Whens = append(merge.Whens, p.parseMergeWhen())
	}
	return merge
}

// parseMergeWhen parses a single `WHEN [NOT] MATCHED [AND cond] THEN ...`
// clause. Its action body is walked the same way an UPDATE's SET list or an
// INSERT's VALUES row is, so a subquery inside it (e.g. `SET total = (SELECT
// ...)`) surfaces to the same lineage machinery those statements use.
func (p *Parser) parseMergeWhen() *ast.MergeWhen {
	pos := p.pos()
	p.expect(token.WHEN)
	w := &ast.MergeWhen{Position: pos, Matched: true}
	if p.currentIs(token.NOT) {
		p.nextToken()
		w.Matched = false
	}
	p.expect(token.MATCHED)
	if p.currentIs(token.AND) {
		p.nextToken()
		w.Condition = p.parseExpression(LOWEST)
	}
	p.expect(token.THEN)

	switch p.current.Token {
	case token.UPDATE:
		p.nextToken()
		p.expect(token.SET)
		for {
			apos := p.pos()
			col := p.parseIdentName()
			p.expect(token.EQ)
			val := p.parseExpression(LOWEST)
			w.Assignments = append(w.Assignments, &ast.Assignment{Position: apos, Column: col, Value: val})
			if p.currentIs(token.COMMA) {
				p.nextToken()
				continue
			}
			break
		}
	case token.DELETE:
		p.nextToken()
		w.Delete = true
	case token.INSERT:
		p.nextToken()
		if p.currentIs(token.LPAREN) {
			p.nextToken()
			for {
				w.InsertColumns = append(w.InsertColumns, p.parseIdentName())
				if p.currentIs(token.COMMA) {
					p.nextToken()
					continue
				}
				break
			}
			p.expect(token.RPAREN)
		}
		p.expect(token.VALUES)
		p.expect(token.LPAREN)
		w.InsertValues = p.parseExpressionList()
		p.expect(token.RPAREN)
	}
	return w
}

// -----------------------------------------------------------------------------
// CREATE TABLE

func (p *Parser) parseCreate() *ast.CreateQuery {
	pos := p.pos()
	p.expect(token.CREATE)
	cq := &ast.CreateQuery{Position: pos}

	for {
		switch p.current.Token {
		case token.VOLATILE:
			cq.Volatile = true
			p.nextToken()
			continue
		case token.MULTISET, token.SET:
			p.nextToken()
			continue
		case token.GLOBAL:
			cq.Global = true
			p.nextToken()
			continue
		case token.TEMPORARY:
			cq.Temporary = true
			p.nextToken()
			continue
		}
		break
	}

	p.expect(token.TABLE)
	cq.Table = p.parseTableIdentifier()

	if p.currentIs(token.AS) {
		p.nextToken()
		paren := p.currentIs(token.LPAREN)
		if paren {
			p.nextToken()
		}
		cq.AsSelect = p.parseSelect()
		if paren {
			p.expect(token.RPAREN)
		}
	}

	var trailing []string
	for !p.currentIs(token.SEMICOLON) && !p.currentIs(token.EOF) {
		trailing = append(trailing, p.current.Value)
		p.nextToken()
	}
	cq.Properties = strings.Join(trailing, " ")

	// A temp table's kind is sometimes only visible in the rendered trailing
	// clause: if it contains "volatile", "global temporary" or "temporary"
	// (in any case), the table is marked Temporary as well.
	rawLower := strings.ToLower(cq.Properties)
	if strings.Contains(rawLower, "volatile") || strings.Contains(rawLower, "global temporary") || strings.Contains(rawLower, "temporary") {
		cq.Temporary = true
	}

	return cq
}

// -----------------------------------------------------------------------------
// CALL

func (p *Parser) parseCall() *ast.Call {
	pos := p.pos()
	p.expect(token.CALL)
	name := p.parseIdentName()
	for p.currentIs(token.DOT) {
		p.nextToken()
		name = name + "." + p.parseIdentName()
	}
	call := &ast.Call{Position: pos, Name: name}
	if p.currentIs(token.LPAREN) {
		p.nextToken()
		if !p.currentIs(token.RPAREN) {
			call.Arguments = p.parseExpressionList()
		}
		p.expect(token.RPAREN)
	}
	return call
}

// -----------------------------------------------------------------------------
// Shared helpers

func (p *Parser) parseIdentName() string {
	if p.currentIs(token.IDENT) || p.current.Token.IsKeyword() {
		name := p.current.Value
		p.nextToken()
		return name
	}
	p.errors = append(p.errors, fmt.Errorf("expected identifier, got %s (%q) at line %d, column %d",
		p.current.Token, p.current.Value, p.current.Pos.Line, p.current.Pos.Column))
	name := p.current.Value
	p.nextToken()
	return name
}

func (p *Parser) parseExpressionList() []ast.Expression {
	var exprs []ast.Expression
	for {
		exprs = append(exprs, p.parseExpression(LOWEST))
		if p.currentIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	return exprs
}
