package template

import (
	"fmt"
	"sort"

	"github.com/jihwankim/fzgo/pkg/model"
)

// EnumerateCases builds the ordered list of Cases for a Cartesian-product
// (or grouped) input: group_variables bind several variables to vary
// together as one ordered tuple per step (zip, not product); all remaining
// variables are crossed with one another and then with the grouped tuples.
func EnumerateCases(values map[string][]model.Value, groupVars []string) ([]model.Case, error) {
	group := map[string]bool{}
	for _, g := range groupVars {
		if _, ok := values[g]; !ok {
			return nil, fmt.Errorf("group_variables references undeclared variable %q", g)
		}
		group[g] = true
	}

	var ungroupVars []string
	for name := range values {
		if !group[name] {
			ungroupVars = append(ungroupVars, name)
		}
	}
	sort.Strings(ungroupVars)

	order := append(append([]string{}, ungroupVars...), groupVars...)

	if len(groupVars) == 0 {
		combos := cartesian(values, ungroupVars)
		cases := make([]model.Case, 0, len(combos))
		for _, combo := range combos {
			cases = append(cases, model.NewCase(append([]string{}, ungroupVars...), combo))
		}
		return cases, nil
	}

	groupLen := -1
	for _, g := range groupVars {
		if groupLen == -1 {
			groupLen = len(values[g])
		} else if len(values[g]) != groupLen {
			return nil, fmt.Errorf("all group_variables must have equal-length value lists")
		}
	}

	var ungroupCombos []map[string]model.Value
	if len(ungroupVars) > 0 {
		ungroupCombos = cartesian(values, ungroupVars)
	} else {
		ungroupCombos = []map[string]model.Value{{}}
	}

	cases := make([]model.Case, 0, len(ungroupCombos)*groupLen)
	for _, uc := range ungroupCombos {
		for i := 0; i < groupLen; i++ {
			combo := map[string]model.Value{}
			for k, v := range uc {
				combo[k] = v
			}
			for _, g := range groupVars {
				combo[g] = values[g][i]
			}
			cases = append(cases, model.NewCase(order, combo))
		}
	}
	return cases, nil
}

// cartesian returns the Cartesian product of values[keys[0]] x
// values[keys[1]] x ... in keys order, as a list of assignment maps.
func cartesian(values map[string][]model.Value, keys []string) []map[string]model.Value {
	if len(keys) == 0 {
		return []map[string]model.Value{{}}
	}
	combos := []map[string]model.Value{{}}
	for _, key := range keys {
		var next []map[string]model.Value
		for _, combo := range combos {
			for _, v := range values[key] {
				c := map[string]model.Value{}
				for k, vv := range combo {
					c[k] = vv
				}
				c[key] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// EnumerateTableCases builds Cases from an explicit row-wise table (one map
// per row), preserving row order exactly — this is the non-factorial design
// path: a table with rows (x=1,y=10),(x=1,y=20),(x=2,y=20) yields exactly
// 3 cases in that order, not a 2x2 Cartesian product.
func EnumerateTableCases(order []string, rows []map[string]model.Value) []model.Case {
	cases := make([]model.Case, 0, len(rows))
	for _, row := range rows {
		cases = append(cases, model.NewCase(order, row))
	}
	return cases
}
