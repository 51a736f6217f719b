package lineage

import (
	"strconv"

	"github.com/kyleconroy/tdlineage/ast"
)

// labelSelects assigns a hierarchical dotted label to every SELECT reachable
// from stmts. CTE bodies, each statement's own top-level query, and any
// subquery embedded in an UPDATE/DELETE/MERGE's predicate or SET-list (which
// have no top-level query of their own) all receive sequential integer
// labels ("1", "2", ...) in declaration order via one process-wide counter;
// a SELECT's directly-nested derived tables and IN/EXISTS subqueries are
// labeled beneath it ("1.1", "1.2", "1.1.1", ...) in declaration order,
// recursively.
func labelSelects(stmts []ast.Statement) map[*ast.SelectQuery]string {
	labels := map[*ast.SelectQuery]string{}
	counter := 0

	var labelTopLevel func(sel *ast.SelectQuery)
	labelTopLevel = func(sel *ast.SelectQuery) {
		if sel == nil {
			return
		}
		for _, w := range sel.With {
			labelTopLevel(w.Query)
		}
		counter++
		assignDotted(sel, strconv.Itoa(counter), labels)
	}

	for _, stmt := range stmts {
		if sel := topLevelSelectOf(stmt); sel != nil {
			labelTopLevel(sel)
			continue
		}
		for _, sel := range embeddedSelectsForStatement(stmt) {
			labelTopLevel(sel)
		}
	}
	return labels
}

func assignDotted(sel *ast.SelectQuery, label string, labels map[*ast.SelectQuery]string) {
	labels[sel] = label
	for i, child := range directChildSelects(sel) {
		assignDotted(child, label+"."+strconv.Itoa(i+1), labels)
	}
}
