package lineage

import (
	"strings"

	"github.com/kyleconroy/tdlineage/ast"
)

// collectFunctions inventories every scalar function invocation and CALLed
// procedure across all statements, deduplicated by (name, type) in
// first-seen order.
func collectFunctions(stmts []ast.Statement) []FunctionRef {
	seen := map[string]bool{}
	var out []FunctionRef

	record := func(name, kind string) {
		key := strings.ToUpper(name) + "|" + kind
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, FunctionRef{Name: name, Type: kind})
	}

	var walkExpr func(ast.Expression)
	var walkSel func(*ast.SelectQuery)

	walkExpr = func(e ast.Expression) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *ast.FunctionCall:
			// CURRENT_DATE and its synonyms are parsed as a FunctionCall so
			// the predicate classifier and renderer treat them uniformly,
			// but they're written without parentheses and so never satisfy
			// the "name followed by (" rule that qualifies a node for the
			// function inventory.
			if !isParenlessKeywordFunction(v.Name) {
				record(v.Name, "function")
			}
			for _, a := range v.Arguments {
				walkExpr(a)
			}
		case *ast.CastExpr:
			walkExpr(v.Expr)
		case *ast.ExtractExpr:
			walkExpr(v.From)
		case *ast.Tuple:
			for _, x := range v.Expressions {
				walkExpr(x)
			}
		case *ast.Paren:
			walkExpr(v.Inner)
		case *ast.AliasedExpr:
			walkExpr(v.Expr)
		case *ast.BinaryExpr:
			walkExpr(v.Left)
			walkExpr(v.Right)
		case *ast.NotExpr:
			walkExpr(v.Expr)
		case *ast.InExpr:
			walkExpr(v.Expr)
			for _, x := range v.List {
				walkExpr(x)
			}
			if v.Query != nil {
				walkSel(v.Query.Query)
			}
		case *ast.LikeExpr:
			walkExpr(v.Expr)
			walkExpr(v.Pattern)
		case *ast.BetweenExpr:
			walkExpr(v.Expr)
			walkExpr(v.Low)
			walkExpr(v.High)
		case *ast.IsNullExpr:
			walkExpr(v.Expr)
		case *ast.ExistsExpr:
			if v.Query != nil {
				walkSel(v.Query.Query)
			}
		case *ast.CaseExpr:
			if v.Operand != nil {
				walkExpr(v.Operand)
			}
			for _, w := range v.Whens {
				walkExpr(w.Condition)
				walkExpr(w.Result)
			}
			if v.Else != nil {
				walkExpr(v.Else)
			}
		case *ast.Subquery:
			walkSel(v.Query)
		}
	}

	walkSel = func(sel *ast.SelectQuery) {
		if sel == nil {
			return
		}
		for _, w := range sel.With {
			walkSel(w.Query)
		}
		for _, c := range sel.Columns {
			walkExpr(c)
		}
		if sel.From != nil {
			for _, elem := range sel.From.Tables {
				if elem.Table != nil {
					if sub, ok := elem.Table.Table.(*ast.Subquery); ok {
						walkSel(sub.Query)
					}
				}
				if elem.Join != nil && elem.Join.On != nil {
					walkExpr(elem.Join.On)
				}
			}
		}
		if sel.Where != nil {
			walkExpr(sel.Where)
		}
		for _, g := range sel.GroupBy {
			walkExpr(g)
		}
		if sel.Having != nil {
			walkExpr(sel.Having)
		}
		for _, o := range sel.OrderBy {
			walkExpr(o.Expression)
		}
	}

	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *ast.SelectQuery:
			walkSel(v)
		case *ast.InsertQuery:
			walkSel(v.Select)
			for _, row := range v.Values {
				for _, e := range row {
					walkExpr(e)
				}
			}
		case *ast.UpdateQuery:
			for _, a := range v.Assignments {
				walkExpr(a.Value)
			}
			if v.Where != nil {
				walkExpr(v.Where)
			}
		case *ast.DeleteQuery:
			if v.Where != nil {
				walkExpr(v.Where)
			}
		case *ast.MergeQuery:
			if v.On != nil {
				walkExpr(v.On)
			}
			for _, w := range v.Whens {
				if w.Condition != nil {
					walkExpr(w.Condition)
				}
				for _, a := range w.Assignments {
					walkExpr(a.Value)
				}
				for _, val := range w.InsertValues {
					walkExpr(val)
				}
			}
		case *ast.CreateQuery:
			walkSel(v.AsSelect)
		case *ast.Call:
			record(v.Name, "procedure")
			for _, a := range v.Arguments {
				walkExpr(a)
			}
		}
	}

	return out
}

func isParenlessKeywordFunction(name string) bool {
	switch strings.ToUpper(name) {
	case "CURRENT_DATE", "CURDATE", "CURRENTDATE", "CURRENT_TIMESTAMP", "CURRENT_TIME":
		return true
	default:
		return false
	}
}
