package lineage

import (
	"strings"

	"github.com/kyleconroy/tdlineage/ast"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// buildScope constructs the alias resolution context for a SELECT from its
// own FROM clause only; it does not recurse into nested SELECTs beyond the
// one level needed to summarize a derived table's own output columns.
func buildScope(sel *ast.SelectQuery) *Scope {
	scope := newScope()
	if sel == nil || sel.From == nil {
		return scope
	}

	for _, elem := range sel.From.Tables {
		if elem.Table == nil {
			continue
		}
		switch t := elem.Table.Table.(type) {
		case *ast.TableIdentifier:
			qname := t.QualifiedName()
			if elem.Table.Alias != "" {
				scope.AliasMap[normalize(elem.Table.Alias)] = qname
			}
			base := normalize(t.Table)
			if _, ok := scope.AliasMap[base]; !ok {
				scope.AliasMap[base] = qname
			}
		case *ast.Subquery:
			inner := t.Query
			innerScope := buildScope(inner)
			bases := innerScope.distinctBases()

			var singleBase string
			if len(bases) == 1 {
				singleBase = bases[0]
			}

			if elem.Table.Alias == "" {
				continue
			}
			aliasNorm := normalize(elem.Table.Alias)
			if singleBase != "" {
				scope.SingleBase[aliasNorm] = singleBase
			}

			colMap := map[string]string{}
			if inner != nil {
				for _, col := range inner.Columns {
					outName, base := resolveProjectionOutput(col, innerScope)
					if outName != "" && base != "" {
						colMap[outName] = base
					}
				}
			}
			if len(colMap) > 0 {
				scope.SubqueryCols[aliasNorm] = colMap
			}
		}
	}

	return scope
}

// resolveProjectionOutput determines the output column name a derived
// table's projection exposes and the base table it can be traced back to
// within the derived table's own scope, so an outer reference to the
// derived-table alias can be attributed to the true underlying table.
func resolveProjectionOutput(expr ast.Expression, innerScope *Scope) (outName, base string) {
	underlying := expr
	if ae, ok := expr.(*ast.AliasedExpr); ok {
		outName = ae.Alias
		underlying = ae.Expr
	}

	col, ok := underlying.(*ast.Column)
	if !ok || col.Star {
		return "", ""
	}
	if outName == "" {
		outName = col.Name
	}

	if col.Table != "" {
		if b, ok := innerScope.AliasMap[normalize(col.Table)]; ok {
			return outName, b
		}
		return outName, ""
	}

	bases := innerScope.distinctBases()
	if len(bases) == 1 {
		return outName, bases[0]
	}
	return outName, ""
}

// resolveQualifierChain resolves a qualifier against sel's own scope, then
// walks up through enclosing SELECTs for correlated references.
func resolveQualifierChain(sel *ast.SelectQuery, scope *Scope, qualifier, column string) (string, bool) {
	if base, ok := scope.resolveQualifier(qualifier, column); ok {
		return base, true
	}
	for parent := sel.Parent; parent != nil; parent = parent.Parent {
		parentScope := buildScope(parent)
		if base, ok := parentScope.resolveQualifier(qualifier, column); ok {
			return base, true
		}
	}
	return "", false
}

// resolveColumnBase resolves an unqualified or qualified column to its base
// table, without emitting any warnings (used by the predicate classifier,
// which silently skips columns it cannot place rather than reporting them
// twice).
func resolveColumnBase(col *ast.Column, sel *ast.SelectQuery, scope *Scope) (string, bool) {
	if col.Table != "" {
		return resolveQualifierChain(sel, scope, col.Table, col.Name)
	}
	bases := scope.distinctBases()
	if len(bases) == 1 {
		return bases[0], true
	}
	return "", false
}
