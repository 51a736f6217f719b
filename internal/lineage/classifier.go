package lineage

import (
	"strings"

	"github.com/kyleconroy/tdlineage/ast"
)

// collectValuesForSelect walks sel's WHERE and HAVING predicates, recording
// a Condition for every constant-value comparison, IN/NOT IN, LIKE/NOT LIKE,
// and BETWEEN/NOT BETWEEN predicate whose column side resolves to a base
// table.
func collectValuesForSelect(sel *ast.SelectQuery, scope *Scope, values map[string]map[string][]Condition, seen map[string]map[string]bool) {
	walkPredicate(sel.Where, sel, scope, values, seen)
	walkPredicate(sel.Having, sel, scope, values, seen)
}

func walkPredicate(e ast.Expression, sel *ast.SelectQuery, scope *Scope, values map[string]map[string][]Condition, seen map[string]map[string]bool) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *ast.Paren:
		walkPredicate(v.Inner, sel, scope, values, seen)
	case *ast.BinaryExpr:
		switch strings.ToUpper(v.Op) {
		case "AND", "OR":
			walkPredicate(v.Left, sel, scope, values, seen)
			walkPredicate(v.Right, sel, scope, values, seen)
		default:
			classifyComparison(v, sel, scope, values, seen)
		}
	case *ast.NotExpr:
		// NOT IN / NOT LIKE / NOT BETWEEN may arrive either as a dedicated
		// node with Not set, or as NotExpr wrapping a plain one (optionally
		// parenthesized); normalize both shapes here so they classify
		// identically.
		switch inner := unwrapParen(v.Expr).(type) {
		case *ast.InExpr:
			classifyIn(&ast.InExpr{Position: inner.Position, Expr: inner.Expr, Not: true, List: inner.List, Query: inner.Query}, sel, scope, values, seen)
		case *ast.LikeExpr:
			classifyLike(&ast.LikeExpr{Position: inner.Position, Expr: inner.Expr, Not: true, Pattern: inner.Pattern}, sel, scope, values, seen)
		case *ast.BetweenExpr:
			classifyBetween(&ast.BetweenExpr{Position: inner.Position, Expr: inner.Expr, Not: true, Low: inner.Low, High: inner.High}, sel, scope, values, seen)
		}
	case *ast.InExpr:
		classifyIn(v, sel, scope, values, seen)
	case *ast.LikeExpr:
		classifyLike(v, sel, scope, values, seen)
	case *ast.BetweenExpr:
		classifyBetween(v, sel, scope, values, seen)
	}
}

func classifyComparison(b *ast.BinaryExpr, sel *ast.SelectQuery, scope *Scope, values map[string]map[string][]Condition, seen map[string]map[string]bool) {
	op := normalizeComparisonOp(b.Op)
	if op == "" {
		return
	}

	leftCol, leftStack := unwrapFunctionStack(b.Left)
	rightCol, rightStack := unwrapFunctionStack(b.Right)

	var col *ast.Column
	var stack []FunctionStackEntry
	var valueExpr ast.Expression
	flip := false

	switch {
	case leftCol != nil:
		col, stack, valueExpr = leftCol, leftStack, b.Right
	case rightCol != nil:
		col, stack, valueExpr, flip = rightCol, rightStack, b.Left, true
	default:
		return
	}

	val, valueStack, ok := literalValueWithStack(valueExpr)
	if !ok {
		return
	}

	base, ok := resolveColumnBase(col, sel, scope)
	if !ok {
		return
	}

	finalOp := op
	if flip {
		finalOp = flipComparisonOp(op)
	}

	cond := Condition{Op: finalOp, Value: val}
	applyColumnStack(&cond, stack)
	applyValueStack(&cond, valueStack)
	addCondition(values, seen, base, col.Name, cond)
}

func classifyIn(in *ast.InExpr, sel *ast.SelectQuery, scope *Scope, values map[string]map[string][]Condition, seen map[string]map[string]bool) {
	col, stack := unwrapFunctionStack(in.Expr)
	if col == nil || in.Query != nil {
		return
	}

	base, ok := resolveColumnBase(col, sel, scope)
	if !ok {
		return
	}

	vals := make([]interface{}, 0, len(in.List))
	valueFns := make([]interface{}, len(in.List))
	valueFnArgs := make([]interface{}, len(in.List))
	valueFnStacks := make([]interface{}, len(in.List))
	anyValueFn := false
	for i, x := range in.List {
		v, elemStack, ok := literalValueWithStack(x)
		if !ok {
			return
		}
		vals = append(vals, v)
		if len(elemStack) > 0 {
			anyValueFn = true
			valueFns[i] = elemStack[0].Fn
			valueFnArgs[i] = elemStack[0].Args
			valueFnStacks[i] = elemStack
		}
	}

	op := "in"
	if in.Not {
		op = "not in"
	}
	cond := Condition{Op: op, Values: vals}
	applyColumnStack(&cond, stack)
	if anyValueFn {
		cond.ValueFns = valueFns
		cond.ValueFnArgsList = valueFnArgs
		cond.ValueFnStackList = valueFnStacks
	}
	addCondition(values, seen, base, col.Name, cond)
}

func classifyLike(l *ast.LikeExpr, sel *ast.SelectQuery, scope *Scope, values map[string]map[string][]Condition, seen map[string]map[string]bool) {
	col, stack := unwrapFunctionStack(l.Expr)
	if col == nil {
		return
	}
	val, valueStack, ok := literalValueWithStack(l.Pattern)
	if !ok {
		return
	}
	base, ok := resolveColumnBase(col, sel, scope)
	if !ok {
		return
	}
	op := "like"
	if l.Not {
		op = "not like"
	}
	cond := Condition{Op: op, Value: val}
	applyColumnStack(&cond, stack)
	applyValueStack(&cond, valueStack)
	addCondition(values, seen, base, col.Name, cond)
}

func classifyBetween(b *ast.BetweenExpr, sel *ast.SelectQuery, scope *Scope, values map[string]map[string][]Condition, seen map[string]map[string]bool) {
	col, stack := unwrapFunctionStack(b.Expr)
	if col == nil {
		return
	}
	low, ok := literalValue(b.Low)
	if !ok {
		return
	}
	high, ok := literalValue(b.High)
	if !ok {
		return
	}
	base, ok := resolveColumnBase(col, sel, scope)
	if !ok {
		return
	}
	op := "between"
	if b.Not {
		op = "not between"
	}
	cond := Condition{Op: op, Low: low, High: high}
	applyColumnStack(&cond, stack)
	addCondition(values, seen, base, col.Name, cond)
}

// applyColumnStack sets a Condition's column-side function wrapper fields
// from an outermost-to-innermost FunctionStackEntry chain. fn/fn_args
// describe only the outermost wrapper; fn_stack carries the full chain.
func applyColumnStack(c *Condition, stack []FunctionStackEntry) {
	if len(stack) == 0 {
		return
	}
	c.Fn = strings.ToLower(stack[0].Fn)
	c.FnArgs = stack[0].Args
	c.FnStack = stack
}

// applyValueStack is applyColumnStack's counterpart for the literal side of
// a predicate.
func applyValueStack(c *Condition, stack []FunctionStackEntry) {
	if len(stack) == 0 {
		return
	}
	c.ValueFn = strings.ToLower(stack[0].Fn)
	c.ValueFnArgs = stack[0].Args
	c.ValueFnStack = stack
}

// unwrapParen strips a single layer of enclosing parens, if any, so a
// NotExpr wrapping "(status IN (...))" classifies the same as one wrapping
// "status IN (...)" directly.
func unwrapParen(e ast.Expression) ast.Expression {
	if p, ok := e.(*ast.Paren); ok {
		return p.Inner
	}
	return e
}

// normalizeComparisonOp maps a binary comparison operator to its Condition
// vocabulary spelling, or "" if the operator has no Condition equivalent.
// Inequality (!=/<>) is deliberately excluded: it still renders into
// pseudocode via comparisonSymbol, but it is not one of the operators
// _values classifies.
func normalizeComparisonOp(raw string) string {
	switch raw {
	case "=":
		return "="
	case "<":
		return "<"
	case "<=":
		return "<="
	case ">":
		return ">"
	case ">=":
		return ">="
	default:
		return ""
	}
}

func flipComparisonOp(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	default:
		return op
	}
}

// unwrapFunctionStack peels CAST/EXTRACT/function-call wrappers off an
// expression until it reaches a bare column, returning that column and its
// wrapper stack from outermost to innermost. Returns a nil column when the
// expression doesn't bottom out at one (e.g. a literal or a binary
// expression), signaling the caller should not treat it as a column-side
// operand.
func unwrapFunctionStack(e ast.Expression) (*ast.Column, []FunctionStackEntry) {
	var stack []FunctionStackEntry
	cur := e
	for {
		switch v := cur.(type) {
		case *ast.Paren:
			cur = v.Inner
		case *ast.FunctionCall:
			if len(v.Arguments) == 0 {
				return nil, stack
			}
			stack = append(stack, FunctionStackEntry{
				Fn:   canonicalFunctionName(v.Name),
				Args: literalArgs(v.Arguments[1:]),
			})
			cur = v.Arguments[0]
		case *ast.CastExpr:
			stack = append(stack, FunctionStackEntry{Fn: "CAST"})
			cur = v.Expr
		case *ast.ExtractExpr:
			stack = append(stack, FunctionStackEntry{Fn: "EXTRACT", Args: []interface{}{v.Unit}})
			cur = v.From
		case *ast.Column:
			if v.Star {
				return nil, stack
			}
			return v, stack
		default:
			return nil, stack
		}
	}
}

// canonicalFunctionName folds Teradata function-name synonyms to one
// canonical spelling so a column wrapped in SUBSTR and one wrapped in
// SUBSTRING classify identically.
func canonicalFunctionName(name string) string {
	switch strings.ToUpper(name) {
	case "SUBSTRING":
		return "SUBSTR"
	case "CHAR_LENGTH", "CHARACTER_LENGTH":
		return "LENGTH"
	case "CURDATE", "CURRENTDATE":
		return "CURRENT_DATE"
	default:
		return strings.ToUpper(name)
	}
}

// literalArgs converts a function call's non-descent arguments into the
// values recorded on a FunctionStackEntry: literals as their parsed values,
// anything else as its rendered SQL.
func literalArgs(exprs []ast.Expression) []interface{} {
	if len(exprs) == 0 {
		return nil
	}
	out := make([]interface{}, len(exprs))
	for i, e := range exprs {
		if v, ok := literalValue(e); ok {
			out[i] = v
			continue
		}
		out[i] = renderArgFallback(e)
	}
	return out
}

// renderArgFallback renders a non-literal function argument to text without
// requiring the scope context a full pseudocode render needs; columns
// appear qualified as written in the source rather than resolved to a base
// table.
func renderArgFallback(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.Column:
		if v.Table != "" {
			return v.Table + "." + v.Name
		}
		return v.Name
	case *ast.DateTimeLiteral:
		return v.Rendered
	default:
		return renderValue(e, &ast.SelectQuery{}, newScope())
	}
}

// literalValue extracts a Go-native constant value from a literal-bearing
// expression, transparently through parens and casts that wrap a literal,
// discarding any function stack found along the way.
func literalValue(e ast.Expression) (interface{}, bool) {
	v, _, ok := literalValueWithStack(e)
	return v, ok
}

// literalValueWithStack extracts a Go-native constant value from a
// literal-bearing expression along with the function-wrapper stack (if any)
// found between the expression and its innermost literal, outermost first.
// A function call whose descent argument doesn't itself bottom out at a
// literal (e.g. it wraps a column instead) fails rather than silently
// dropping the wrapper.
func literalValueWithStack(e ast.Expression) (interface{}, []FunctionStackEntry, bool) {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value, nil, true
	case *ast.DateTimeLiteral:
		return v.Rendered, nil, true
	case *ast.Paren:
		return literalValueWithStack(v.Inner)
	case *ast.CastExpr:
		return literalValueWithStack(v.Expr)
	case *ast.FunctionCall:
		if len(v.Arguments) == 0 {
			return nil, nil, false
		}
		val, inner, ok := literalValueWithStack(v.Arguments[0])
		if !ok {
			return nil, nil, false
		}
		entry := FunctionStackEntry{
			Fn:   canonicalFunctionName(v.Name),
			Args: literalArgs(v.Arguments[1:]),
		}
		return val, append([]FunctionStackEntry{entry}, inner...), true
	case *ast.BinaryExpr:
		// Only the unary-minus/plus encoding (0 - x / 0 + x) survives here;
		// anything else isn't a constant.
		if v.Op == "-" || v.Op == "+" {
			if lit, ok := v.Left.(*ast.Literal); ok && lit.Type == ast.LiteralInt && lit.Value == int64(0) {
				inner, stack, ok := literalValueWithStack(v.Right)
				if !ok {
					return nil, nil, false
				}
				if v.Op == "-" {
					neg, ok := negate(inner)
					if !ok {
						return nil, nil, false
					}
					return neg, stack, true
				}
				return inner, stack, true
			}
		}
		return nil, nil, false
	default:
		return nil, nil, false
	}
}

func negate(v interface{}) (interface{}, bool) {
	switch n := v.(type) {
	case int64:
		return -n, true
	case float64:
		return -n, true
	default:
		return nil, false
	}
}
