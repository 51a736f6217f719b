package lineage

import (
	"sort"

	"github.com/kyleconroy/tdlineage/ast"
)

// collectCTENames gathers every WITH-clause binding name across every
// statement, including CTEs nested inside derived tables.
func collectCTENames(stmts []ast.Statement) map[string]bool {
	names := map[string]bool{}

	var walkSel func(sel *ast.SelectQuery)
	walkSel = func(sel *ast.SelectQuery) {
		if sel == nil {
			return
		}
		for _, w := range sel.With {
			names[w.Name] = true
			walkSel(w.Query)
		}
		for _, child := range directChildSelects(sel) {
			walkSel(child)
		}
	}

	for _, stmt := range stmts {
		if sel := topLevelSelectOf(stmt); sel != nil {
			walkSel(sel)
			continue
		}
		for _, sel := range embeddedSelectsForStatement(stmt) {
			walkSel(sel)
		}
	}
	return names
}

// collectCreatedObjectsAndTemps classifies every CREATE TABLE statement as
// either a temp table (VOLATILE, GLOBAL TEMPORARY, or plain TEMPORARY) or a
// created object, never both: a table assigned to one set is never added to
// the other, so a temp table can't leak into _created_objects.
func collectCreatedObjectsAndTemps(stmts []ast.Statement) (created, temps map[string]bool) {
	created = map[string]bool{}
	temps = map[string]bool{}

	for _, stmt := range stmts {
		cq, ok := stmt.(*ast.CreateQuery)
		if !ok || cq.Table == nil {
			continue
		}
		qname := cq.Table.QualifiedName()
		if cq.Volatile || cq.Global || cq.Temporary {
			temps[qname] = true
		} else {
			created[qname] = true
		}
	}
	return created, temps
}

// collectWriteTargets gathers the direct write target of every INSERT,
// UPDATE, DELETE, and MERGE. Tables read inside an INSERT's source SELECT
// are never added here; they surface as base tables instead.
func collectWriteTargets(stmts []ast.Statement) map[string]bool {
	targets := map[string]bool{}
	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *ast.InsertQuery:
			if v.Table != nil {
				targets[v.Table.QualifiedName()] = true
			}
		case *ast.UpdateQuery:
			if v.Table != nil {
				targets[v.Table.QualifiedName()] = true
			}
		case *ast.DeleteQuery:
			if v.Table != nil {
				targets[v.Table.QualifiedName()] = true
			}
		case *ast.MergeQuery:
			if v.Target != nil {
				targets[v.Target.QualifiedName()] = true
			}
		}
	}
	return targets
}

// collectBaseTables gathers every table read from a FROM/JOIN clause or a
// MERGE's USING source across all statements and their nested SELECTs, then
// excludes CTEs, created objects, temp tables, and write targets, leaving
// only externally-sourced base tables.
func collectBaseTables(stmts []ast.Statement, ctes, created, temps, writeTargets map[string]bool) []string {
	found := map[string]bool{}

	var walkSel func(sel *ast.SelectQuery)
	walkSel = func(sel *ast.SelectQuery) {
		if sel == nil {
			return
		}
		for _, w := range sel.With {
			walkSel(w.Query)
		}
		if sel.From != nil {
			for _, elem := range sel.From.Tables {
				if elem.Table == nil {
					continue
				}
				switch t := elem.Table.Table.(type) {
				case *ast.TableIdentifier:
					found[t.QualifiedName()] = true
				case *ast.Subquery:
					walkSel(t.Query)
				}
			}
		}
		for _, child := range directChildSelects(sel) {
			walkSel(child)
		}
	}

	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *ast.SelectQuery:
			walkSel(v)
		case *ast.InsertQuery:
			walkSel(v.Select)
		case *ast.CreateQuery:
			walkSel(v.AsSelect)
		case *ast.UpdateQuery:
			if v.From != nil {
				for _, elem := range v.From.Tables {
					if elem.Table == nil {
						continue
					}
					if t, ok := elem.Table.Table.(*ast.TableIdentifier); ok {
						found[t.QualifiedName()] = true
					}
				}
			}
		case *ast.DeleteQuery:
			// no readable FROM/JOIN source beyond the delete target itself,
			// which is excluded below as a write target; any table read
			// happens only inside a WHERE-clause subquery, handled below.
		case *ast.MergeQuery:
			if v.Source != nil {
				switch t := v.Source.Table.(type) {
				case *ast.TableIdentifier:
					found[t.QualifiedName()] = true
				case *ast.Subquery:
					walkSel(t.Query)
				}
			}
		}
		for _, sel := range embeddedSelectsForStatement(stmt) {
			walkSel(sel)
		}
	}

	var out []string
	for name := range found {
		if ctes[name] || created[name] || temps[name] || writeTargets[name] {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
