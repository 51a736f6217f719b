package lineage

import (
	"fmt"
	"sort"
)

func addCondition(values map[string]map[string][]Condition, seen map[string]map[string]bool, table, column string, cond Condition) {
	sigKey := table + "." + column
	sig := conditionSignature(cond)
	if seen[sigKey] == nil {
		seen[sigKey] = map[string]bool{}
	}
	if seen[sigKey][sig] {
		return
	}
	seen[sigKey][sig] = true

	if values[table] == nil {
		values[table] = map[string][]Condition{}
	}
	values[table][column] = append(values[table][column], cond)
}

func conditionSignature(c Condition) string {
	return fmt.Sprintf("%s|%v|%v|%v|%v|%s|%v|%v|%v|%v|%v|%v|%v|%v",
		c.Op, c.Value, c.Values, c.Low, c.High,
		c.Fn, c.FnArgs, c.FnStack,
		c.ValueFn, c.ValueFnArgs, c.ValueFnStack,
		c.ValueFns, c.ValueFnArgsList, c.ValueFnStackList)
}

func finalizeVariables(variables map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(variables))
	for table, cols := range variables {
		list := make([]string, 0, len(cols))
		for c := range cols {
			list = append(list, c)
		}
		sort.Strings(list)
		out[table] = list
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
