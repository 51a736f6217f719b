package lineage

import (
	"fmt"

	"github.com/kyleconroy/tdlineage/ast"
)

// collectVariablesForSelect attributes every column referenced in sel's
// projections, WHERE, GROUP BY, HAVING, ORDER BY, and JOIN conditions to its
// base table, recording unresolved or ambiguous references as warnings
// instead of silently dropping them.
func collectVariablesForSelect(sel *ast.SelectQuery, scope *Scope, variables map[string]map[string]bool, warnings *[]string) {
	recordStarVariables(sel, scope, variables, warnings)

	visit := func(col *ast.Column) {
		attributeColumn(col, sel, scope, variables, warnings)
	}

	for _, c := range sel.Columns {
		walkColumns(c, visit)
	}
	if sel.Where != nil {
		walkColumns(sel.Where, visit)
	}
	for _, g := range sel.GroupBy {
		walkColumns(g, visit)
	}
	if sel.Having != nil {
		walkColumns(sel.Having, visit)
	}
	for _, o := range sel.OrderBy {
		walkColumns(o.Expression, visit)
	}
	if sel.From != nil {
		for _, elem := range sel.From.Tables {
			if elem.Join != nil && elem.Join.On != nil {
				walkColumns(elem.Join.On, visit)
			}
		}
	}
}

func attributeColumn(col *ast.Column, sel *ast.SelectQuery, scope *Scope, variables map[string]map[string]bool, warnings *[]string) {
	if col.Table != "" {
		base, ok := resolveQualifierChain(sel, scope, col.Table, col.Name)
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf(
				"ambiguous_column_origin: could not resolve qualifier '%s' for column '%s'", col.Table, col.Name))
			return
		}
		addVariable(variables, base, col.Name)
		return
	}

	bases := scope.distinctBases()
	switch len(bases) {
	case 0:
		*warnings = append(*warnings, fmt.Sprintf(
			"ambiguous_column_origin: column '%s' has no FROM-clause table in scope", col.Name))
	case 1:
		addVariable(variables, bases[0], col.Name)
	default:
		*warnings = append(*warnings, fmt.Sprintf(
			"ambiguous_column_origin: column '%s' is ambiguous across %d FROM-clause tables", col.Name, len(bases)))
	}
}

// recordStarVariables attributes "*" and "t.*" projections, each one also
// producing a select_star_used warning since it broadens lineage beyond
// what static analysis of the text alone can enumerate.
func recordStarVariables(sel *ast.SelectQuery, scope *Scope, variables map[string]map[string]bool, warnings *[]string) {
	for _, colExpr := range sel.Columns {
		col := starColumn(colExpr)
		if col == nil {
			continue
		}

		if col.Table != "" {
			base, ok := scope.resolveQualifier(col.Table, "")
			if !ok {
				*warnings = append(*warnings, fmt.Sprintf(
					"ambiguous_column_origin: could not resolve qualifier '%s' for star projection", col.Table))
				continue
			}
			addVariable(variables, base, "*")
			*warnings = append(*warnings, fmt.Sprintf("select_star_used: table %s has '*' referenced", base))
			continue
		}

		bases := scope.distinctBases()
		if len(bases) == 0 {
			*warnings = append(*warnings, "select_star_used: no FROM-clause table in scope for '*'")
			continue
		}
		for _, b := range bases {
			addVariable(variables, b, "*")
			*warnings = append(*warnings, fmt.Sprintf("select_star_used: table %s has '*' referenced", b))
		}
	}
}

func starColumn(e ast.Expression) *ast.Column {
	switch v := e.(type) {
	case *ast.Column:
		if v.Star {
			return v
		}
	case *ast.AliasedExpr:
		return starColumn(v.Expr)
	}
	return nil
}

func addVariable(variables map[string]map[string]bool, table, column string) {
	if variables[table] == nil {
		variables[table] = map[string]bool{}
	}
	variables[table][column] = true
}
