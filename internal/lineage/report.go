// Package lineage extracts table, column, and predicate lineage from a
// parsed Teradata SQL statement list and assembles it into a single report.
package lineage

// Report is the aggregated lineage result for one parsed SQL script.
type Report struct {
	Tables         []string                          `json:"_tables"`
	Variables      map[string][]string               `json:"_variables"`
	Values         map[string]map[string][]Condition `json:"_values"`
	CTEs           []string                          `json:"_ctes"`
	TempTables     []string                          `json:"_temp_tables"`
	CreatedObjects []string                          `json:"_created_objects"`
	WriteTargets   []string                          `json:"_write_targets"`
	Functions      []FunctionRef                      `json:"_functions"`
	Pseudocode     map[string][]Pseudocode            `json:"_pseudocode"`
	Warnings       []string                           `json:"_warnings"`
	Meta           Meta                               `json:"_meta"`
}

// FunctionStackEntry is one level of a function-wrapper stack: a canonical,
// upper-cased function name plus its non-column arguments (literal values,
// or the rendered SQL of any argument that isn't a literal), outermost
// entries first.
type FunctionStackEntry struct {
	Fn   string        `json:"fn"`
	Args []interface{} `json:"args"`
}

// Condition is one constant-value filter recorded against a column, keyed
// in the report by its table and column name. The column side and the
// literal side may each be wrapped in an arbitrarily deep function stack;
// Fn/ValueFn name only the outermost wrapper (lower-cased, to distinguish
// them from the upper-cased stack entries), while FnStack/ValueFnStack carry
// the full outermost-to-innermost chain.
type Condition struct {
	Op     string        `json:"op"`
	Value  interface{}   `json:"value,omitempty"`
	Values []interface{} `json:"values,omitempty"`
	Low    interface{}   `json:"low,omitempty"`
	High   interface{}   `json:"high,omitempty"`

	Fn      string                `json:"fn,omitempty"`
	FnArgs  []interface{}         `json:"fn_args,omitempty"`
	FnStack []FunctionStackEntry  `json:"fn_stack,omitempty"`

	ValueFn      string                `json:"value_fn,omitempty"`
	ValueFnArgs  []interface{}         `json:"value_fn_args,omitempty"`
	ValueFnStack []FunctionStackEntry  `json:"value_fn_stack,omitempty"`

	// The list variants below parallel Values, one entry per element of an
	// IN/NOT IN list; an element with no function wrapper has a nil entry
	// in each list.
	ValueFns         []interface{} `json:"value_fns,omitempty"`
	ValueFnArgsList  []interface{} `json:"value_fn_args_list,omitempty"`
	ValueFnStackList []interface{} `json:"value_fn_stack_list,omitempty"`
}

// FunctionRef is one invoked function or procedure, deduplicated by
// (name, type) in first-seen order.
type FunctionRef struct {
	Name string `json:"name"`
	Type string `json:"type"` // "function" or "procedure"
}

// Pseudocode is the rendered predicate text for one SELECT operation. Each
// operation label maps to a single-element slice carrying this record.
type Pseudocode struct {
	Join   string `json:"join,omitempty"`
	Where  string `json:"where,omitempty"`
	Having string `json:"having,omitempty"`
}

// Meta carries run metadata unrelated to lineage content itself.
type Meta struct {
	Dialect    string `json:"dialect"`
	Statements int    `json:"statements"`
}

// Scope is the alias resolution context for a single SELECT's FROM clause.
type Scope struct {
	// AliasMap maps a normalized alias or bare base-table name to the
	// table's fully qualified name.
	AliasMap map[string]string
	// SubqueryCols maps a normalized derived-table alias to a map of its
	// output column name to the qualified base table that column was
	// projected from, when that base is unambiguous.
	SubqueryCols map[string]map[string]string
	// SingleBase maps a normalized derived-table alias to the single base
	// table its FROM clause reads from, when there is exactly one.
	SingleBase map[string]string
}

func newScope() *Scope {
	return &Scope{
		AliasMap:     map[string]string{},
		SubqueryCols: map[string]map[string]string{},
		SingleBase:   map[string]string{},
	}
}

// resolveQualifier resolves a FROM-clause qualifier against this scope only,
// trying a real table alias first, then a derived-table column pass-through,
// then a derived table with a single unambiguous base.
func (s *Scope) resolveQualifier(qualifier, column string) (string, bool) {
	q := normalize(qualifier)
	if base, ok := s.AliasMap[q]; ok {
		return base, true
	}
	if cols, ok := s.SubqueryCols[q]; ok {
		if base, ok2 := cols[column]; ok2 {
			return base, true
		}
	}
	if base, ok := s.SingleBase[q]; ok {
		return base, true
	}
	return "", false
}

// distinctBases returns the set of base tables named directly in this
// scope's FROM clause, for resolving unqualified column references.
func (s *Scope) distinctBases() []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range s.AliasMap {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
