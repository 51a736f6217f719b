package lineage

import "github.com/kyleconroy/tdlineage/ast"

// Extract walks a parsed statement list and assembles the aggregated
// lineage report: base tables, per-table column references, constant-value
// filters, CTE and temp-table names, created objects, DML write targets,
// invoked functions and procedures, pseudocode for every SELECT's join and
// filter predicates, and any warnings raised while resolving ambiguous
// references.
func Extract(stmts []ast.Statement) (*Report, error) {
	ctes := collectCTENames(stmts)
	created, temps := collectCreatedObjectsAndTemps(stmts)
	writeTargets := collectWriteTargets(stmts)
	tables := collectBaseTables(stmts, ctes, created, temps, writeTargets)

	labels := labelSelects(stmts)

	variables := map[string]map[string]bool{}
	values := map[string]map[string][]Condition{}
	seen := map[string]map[string]bool{}
	var warnings []string

	var processSelect func(sel *ast.SelectQuery)
	processSelect = func(sel *ast.SelectQuery) {
		if sel == nil {
			return
		}
		scope := buildScope(sel)
		collectVariablesForSelect(sel, scope, variables, &warnings)
		collectValuesForSelect(sel, scope, values, seen)
		for _, w := range sel.With {
			processSelect(w.Query)
		}
		for _, child := range directChildSelects(sel) {
			processSelect(child)
		}
	}
	for _, stmt := range stmts {
		if sel := topLevelSelectOf(stmt); sel != nil {
			processSelect(sel)
			continue
		}
		for _, sel := range embeddedSelectsForStatement(stmt) {
			processSelect(sel)
		}
	}

	pseudocode := map[string][]Pseudocode{}
	for sel, label := range labels {
		scope := buildScope(sel)
		var pc Pseudocode
		if sel.From != nil {
			pc.Join = renderJoinPseudocode(sel, scope, labels)
		}
		if sel.Where != nil {
			pc.Where = renderCondition(sel.Where, sel, scope, labels)
		}
		if sel.Having != nil {
			pc.Having = renderCondition(sel.Having, sel, scope, labels)
		}
		pseudocode["Operation "+label] = []Pseudocode{pc}
	}

	report := &Report{
		Tables:         tables,
		Variables:      finalizeVariables(variables),
		Values:         values,
		CTEs:           sortedKeys(ctes),
		TempTables:     sortedKeys(temps),
		CreatedObjects: sortedKeys(created),
		WriteTargets:   sortedKeys(writeTargets),
		Functions:      collectFunctions(stmts),
		Pseudocode:     pseudocode,
		Warnings:       warnings,
		Meta: Meta{
			Dialect:    "teradata",
			Statements: len(stmts),
		},
	}
	return report, nil
}
