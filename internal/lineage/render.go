package lineage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kyleconroy/tdlineage/ast"
)

// renderJoinPseudocode renders the JOIN conditions of sel's FROM clause. For
// each JOIN, it prefers the explicit equality comparisons found anywhere in
// the ON expression, joined by AND; only when the ON clause contains no
// equality at all does it fall back to rendering the raw ON expression.
func renderJoinPseudocode(sel *ast.SelectQuery, scope *Scope, labels map[*ast.SelectQuery]string) string {
	if sel.From == nil {
		return ""
	}
	var parts []string
	for _, elem := range sel.From.Tables {
		if elem.Join == nil || elem.Join.On == nil {
			continue
		}
		eqs := findEqualities(elem.Join.On)
		if len(eqs) > 0 {
			for _, eq := range eqs {
				parts = append(parts, renderCondition(eq, sel, scope, labels))
			}
		} else {
			parts = append(parts, renderCondition(elem.Join.On, sel, scope, labels))
		}
	}
	return strings.Join(parts, " AND ")
}

func findEqualities(e ast.Expression) []ast.Expression {
	var out []ast.Expression
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		switch v := e.(type) {
		case *ast.BinaryExpr:
			if v.Op == "=" {
				out = append(out, v)
			}
			walk(v.Left)
			walk(v.Right)
		case *ast.Paren:
			walk(v.Inner)
		case *ast.NotExpr:
			walk(v.Expr)
		}
	}
	walk(e)
	return out
}

// renderCondition renders a predicate tree to its pseudocode text, qualifying
// every column to its base table and cross-referencing nested SELECTs by
// their assigned operation label.
func renderCondition(e ast.Expression, sel *ast.SelectQuery, scope *Scope, labels map[*ast.SelectQuery]string) string {
	switch v := e.(type) {
	case *ast.Paren:
		return renderCondition(v.Inner, sel, scope, labels)
	case *ast.NotExpr:
		return "(NOT " + renderCondition(v.Expr, sel, scope, labels) + ")"
	case *ast.BinaryExpr:
		switch strings.ToUpper(v.Op) {
		case "AND":
			return "(" + renderCondition(v.Left, sel, scope, labels) + " AND " + renderCondition(v.Right, sel, scope, labels) + ")"
		case "OR":
			return "(" + renderCondition(v.Left, sel, scope, labels) + " OR " + renderCondition(v.Right, sel, scope, labels) + ")"
		default:
			sym := comparisonSymbol(v.Op)
			return "(" + renderValue(v.Left, sel, scope) + " " + sym + " " + renderValue(v.Right, sel, scope) + ")"
		}
	case *ast.InExpr:
		op := "IN"
		if v.Not {
			op = "NOT IN"
		}
		var rhs string
		if v.Query != nil {
			rhs = "(Operation " + labels[v.Query.Query] + ")"
		} else {
			parts := make([]string, len(v.List))
			for i, x := range v.List {
				parts[i] = renderValue(x, sel, scope)
			}
			rhs = "(" + strings.Join(parts, ", ") + ")"
		}
		return "(" + renderValue(v.Expr, sel, scope) + " " + op + " " + rhs + ")"
	case *ast.LikeExpr:
		op := "LIKE"
		if v.Not {
			op = "NOT LIKE"
		}
		return "(" + renderValue(v.Expr, sel, scope) + " " + op + " " + renderValue(v.Pattern, sel, scope) + ")"
	case *ast.BetweenExpr:
		op := "BETWEEN"
		if v.Not {
			op = "NOT BETWEEN"
		}
		return "(" + renderValue(v.Expr, sel, scope) + " " + op + " " + renderValue(v.Low, sel, scope) + " AND " + renderValue(v.High, sel, scope) + ")"
	case *ast.IsNullExpr:
		op := "IS NULL"
		if v.Not {
			op = "IS NOT NULL"
		}
		return "(" + renderValue(v.Expr, sel, scope) + " " + op + ")"
	case *ast.ExistsExpr:
		label := labels[v.Query.Query]
		return "EXISTS(Operation " + label + ")"
	default:
		return renderValue(e, sel, scope)
	}
}

func comparisonSymbol(op string) string {
	switch op {
	case "=":
		return "=="
	case "<>":
		return "!="
	default:
		return op
	}
}

// renderValue renders the non-boolean side of a predicate: a qualified
// column reference, a literal, or a function/cast/extract wrapper around
// one.
func renderValue(e ast.Expression, sel *ast.SelectQuery, scope *Scope) string {
	switch v := e.(type) {
	case *ast.Column:
		return renderColumnRef(v, sel, scope)
	case *ast.Literal:
		return renderLiteral(v)
	case *ast.DateTimeLiteral:
		return v.Rendered
	case *ast.Paren:
		return renderValue(v.Inner, sel, scope)
	case *ast.FunctionCall:
		name := canonicalFunctionName(v.Name)
		switch name {
		case "CURRENT_DATE", "CURRENT_TIMESTAMP", "CURRENT_TIME":
			return name
		}
		args := make([]string, len(v.Arguments))
		for i, a := range v.Arguments {
			args[i] = renderValue(a, sel, scope)
		}
		return name + "(" + strings.Join(args, ", ") + ")"
	case *ast.CastExpr:
		return "CAST(" + renderValue(v.Expr, sel, scope) + " AS " + v.Type + ")"
	case *ast.ExtractExpr:
		return "EXTRACT(" + v.Unit + " FROM " + renderValue(v.From, sel, scope) + ")"
	case *ast.Tuple:
		parts := make([]string, len(v.Expressions))
		for i, x := range v.Expressions {
			parts[i] = renderValue(x, sel, scope)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *ast.BinaryExpr:
		return renderValue(v.Left, sel, scope) + " " + v.Op + " " + renderValue(v.Right, sel, scope)
	default:
		return ""
	}
}

func renderColumnRef(col *ast.Column, sel *ast.SelectQuery, scope *Scope) string {
	if col.Star {
		if col.Table != "" {
			return col.Table + ".*"
		}
		return "*"
	}
	if col.Table != "" {
		if base, ok := resolveQualifierChain(sel, scope, col.Table, col.Name); ok {
			return base + "." + col.Name
		}
		// Unresolvable qualifier: fall back to the qualifier as written in
		// the source rather than dropping it, since the reader can still
		// see which table alias it names.
		return col.Table + "." + col.Name
	}
	bases := scope.distinctBases()
	if len(bases) == 1 {
		return bases[0] + "." + col.Name
	}
	return col.Name
}

func renderLiteral(lit *ast.Literal) string {
	switch lit.Type {
	case ast.LiteralString:
		s, _ := lit.Value.(string)
		return "'" + s + "'"
	case ast.LiteralNull:
		return "NULL"
	case ast.LiteralInt:
		n, _ := lit.Value.(int64)
		return strconv.FormatInt(n, 10)
	case ast.LiteralFloat:
		f, _ := lit.Value.(float64)
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", lit.Value)
	}
}
