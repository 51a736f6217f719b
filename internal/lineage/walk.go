package lineage

import "github.com/kyleconroy/tdlineage/ast"

// walkColumns visits every Column reference reachable from e without
// crossing into a nested Subquery's own SELECT, which belongs to a separate
// scope and is visited on its own pass.
func walkColumns(e ast.Expression, visit func(*ast.Column)) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *ast.Column:
		if !v.Star {
			visit(v)
		}
	case *ast.Tuple:
		for _, x := range v.Expressions {
			walkColumns(x, visit)
		}
	case *ast.Paren:
		walkColumns(v.Inner, visit)
	case *ast.FunctionCall:
		for _, a := range v.Arguments {
			walkColumns(a, visit)
		}
	case *ast.ExtractExpr:
		walkColumns(v.From, visit)
	case *ast.CastExpr:
		walkColumns(v.Expr, visit)
	case *ast.AliasedExpr:
		walkColumns(v.Expr, visit)
	case *ast.BinaryExpr:
		walkColumns(v.Left, visit)
		walkColumns(v.Right, visit)
	case *ast.NotExpr:
		walkColumns(v.Expr, visit)
	case *ast.InExpr:
		walkColumns(v.Expr, visit)
		for _, x := range v.List {
			walkColumns(x, visit)
		}
	case *ast.LikeExpr:
		walkColumns(v.Expr, visit)
		walkColumns(v.Pattern, visit)
	case *ast.BetweenExpr:
		walkColumns(v.Expr, visit)
		walkColumns(v.Low, visit)
		walkColumns(v.High, visit)
	case *ast.IsNullExpr:
		walkColumns(v.Expr, visit)
	case *ast.CaseExpr:
		if v.Operand != nil {
			walkColumns(v.Operand, visit)
		}
		for _, w := range v.Whens {
			walkColumns(w.Condition, visit)
			walkColumns(w.Result, visit)
		}
		if v.Else != nil {
			walkColumns(v.Else, visit)
		}
	}
}

// subqueriesInExpr returns every subquery reachable directly from e without
// descending past a subquery boundary into ITS children. This is the
// expression-level building block shared by directChildSelects (a SELECT's
// own clauses) and embeddedSelectsForStatement (an UPDATE/DELETE/MERGE's
// predicate and assignment expressions, which have no enclosing SelectQuery
// of their own to hang a child relationship off of).
func subqueriesInExpr(e ast.Expression) []*ast.SelectQuery {
	var out []*ast.SelectQuery
	add := func(s *ast.SelectQuery) {
		if s != nil {
			out = append(out, s)
		}
	}

	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *ast.Subquery:
			add(v.Query)
		case *ast.Tuple:
			for _, x := range v.Expressions {
				walk(x)
			}
		case *ast.Paren:
			walk(v.Inner)
		case *ast.FunctionCall:
			for _, a := range v.Arguments {
				walk(a)
			}
		case *ast.ExtractExpr:
			walk(v.From)
		case *ast.CastExpr:
			walk(v.Expr)
		case *ast.AliasedExpr:
			walk(v.Expr)
		case *ast.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *ast.NotExpr:
			walk(v.Expr)
		case *ast.InExpr:
			walk(v.Expr)
			for _, x := range v.List {
				walk(x)
			}
			if v.Query != nil {
				add(v.Query.Query)
			}
		case *ast.LikeExpr:
			walk(v.Expr)
			walk(v.Pattern)
		case *ast.BetweenExpr:
			walk(v.Expr)
			walk(v.Low)
			walk(v.High)
		case *ast.IsNullExpr:
			walk(v.Expr)
		case *ast.ExistsExpr:
			if v.Query != nil {
				add(v.Query.Query)
			}
		case *ast.CaseExpr:
			if v.Operand != nil {
				walk(v.Operand)
			}
			for _, w := range v.Whens {
				walk(w.Condition)
				walk(w.Result)
			}
			if v.Else != nil {
				walk(v.Else)
			}
		}
	}

	walk(e)
	return out
}

// directChildSelects returns the SELECTs reachable directly from sel's own
// columns, FROM/JOIN clause, WHERE, GROUP BY, HAVING, and ORDER BY, without
// descending past a subquery boundary into ITS children. CTE bodies
// (sel.With) are excluded: they are labeled as their own top-level
// operations, not as children of the SELECT that references them.
func directChildSelects(sel *ast.SelectQuery) []*ast.SelectQuery {
	var out []*ast.SelectQuery
	for _, c := range sel.Columns {
		out = append(out, subqueriesInExpr(c)...)
	}
	if sel.From != nil {
		for _, elem := range sel.From.Tables {
			if elem.Table == nil {
				continue
			}
			if sub, ok := elem.Table.Table.(*ast.Subquery); ok {
				out = append(out, sub.Query)
			}
			if elem.Join != nil && elem.Join.On != nil {
				out = append(out, subqueriesInExpr(elem.Join.On)...)
			}
		}
	}
	if sel.Where != nil {
		out = append(out, subqueriesInExpr(sel.Where)...)
	}
	for _, g := range sel.GroupBy {
		out = append(out, subqueriesInExpr(g)...)
	}
	if sel.Having != nil {
		out = append(out, subqueriesInExpr(sel.Having)...)
	}
	for _, o := range sel.OrderBy {
		out = append(out, subqueriesInExpr(o.Expression)...)
	}
	return out
}

// embeddedSelectsForStatement returns the subqueries reachable directly from
// an UPDATE/DELETE/MERGE's predicate, SET-list, and matched-clause action
// expressions. Unlike a SELECT's own children, these have no enclosing
// SelectQuery to attach to, so each one found here is labeled and processed
// as its own top-level operation.
func embeddedSelectsForStatement(stmt ast.Statement) []*ast.SelectQuery {
	var out []*ast.SelectQuery
	switch v := stmt.(type) {
	case *ast.UpdateQuery:
		for _, a := range v.Assignments {
			out = append(out, subqueriesInExpr(a.Value)...)
		}
		if v.From != nil {
			for _, elem := range v.From.Tables {
				if elem.Table == nil {
					continue
				}
				if sub, ok := elem.Table.Table.(*ast.Subquery); ok {
					out = append(out, sub.Query)
				}
			}
		}
		if v.Where != nil {
			out = append(out, subqueriesInExpr(v.Where)...)
		}
	case *ast.DeleteQuery:
		if v.Where != nil {
			out = append(out, subqueriesInExpr(v.Where)...)
		}
	case *ast.MergeQuery:
		if v.On != nil {
			out = append(out, subqueriesInExpr(v.On)...)
		}
		for _, w := range v.Whens {
			if w.Condition != nil {
				out = append(out, subqueriesInExpr(w.Condition)...)
			}
			for _, a := range w.Assignments {
				out = append(out, subqueriesInExpr(a.Value)...)
			}
			for _, val := range w.InsertValues {
				out = append(out, subqueriesInExpr(val)...)
			}
		}
	}
	return out
}

// topLevelSelectOf returns the SELECT body directly embedded in a
// statement: the statement's own query (for a bare SELECT, or the source of
// an INSERT/CREATE ... AS SELECT), or nil for any other statement kind.
func topLevelSelectOf(stmt ast.Statement) *ast.SelectQuery {
	switch v := stmt.(type) {
	case *ast.SelectQuery:
		return v
	case *ast.InsertQuery:
		return v.Select
	case *ast.CreateQuery:
		return v.AsSelect
	default:
		return nil
	}
}
