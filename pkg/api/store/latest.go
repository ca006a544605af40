package store

import (
	"context"

	"github.com/hluk/resultsdb/pkg/api/query"
)

// groupKey partitions results for latest resolution: by testcase alone, or
// by (testcase, distinct_on value). Results without any value for the
// distinct_on key form their own group per testcase, distinct from every
// present-value group (hasValue keeps "" apart from "no row at all").
type groupKey struct {
	testcase string
	value    string
	hasValue bool
}

// QueryLatestResults returns at most one result per distinct grouping key:
// (testcase) by default, or (testcase, value of the result-data key named
// by _distinct_on). Within each group the survivor is the result with the
// greatest submit_time, ties broken by greatest id. Survivors are ordered
// globally by the requested sort, not clustered by testcase.
func (s *store) QueryLatestResults(
	ctx context.Context, filters *query.Filters,
) ([]Result, error) {
	if filters.DistinctOn != "" && !filters.HasConstraints() {
		return nil, query.Validationf(
			"Please, provide at least one filter beside '_distinct_on'")
	}

	// Fetch the full candidate set newest-first so that the first row
	// seen per group is its survivor.
	descending := *filters
	descending.Sort = query.SortSpec{Field: "submit_time", Descending: true}

	candidates, err := s.QueryResults(ctx, &descending, nil)
	if err != nil {
		return nil, err
	}

	survivors := resolveLatest(candidates, filters.DistinctOn)

	if !filters.Sort.Descending {
		reverse(survivors)
	}

	return survivors, nil
}

// resolveLatest reduces a (submit_time desc, id desc) ordered candidate
// list to one survivor per group. A result with several values for the
// distinct_on key competes in every one of those value-groups and appears
// once per group it wins. The output inherits the input ordering, which is
// exactly the global survivor sort.
func resolveLatest(candidates []Result, distinctOn string) []Result {
	seen := make(map[groupKey]bool, len(candidates))
	survivors := make([]Result, 0, len(candidates))

	for i := range candidates {
		r := &candidates[i]

		for _, key := range groupKeys(r, distinctOn) {
			if seen[key] {
				continue
			}

			seen[key] = true

			survivors = append(survivors, *r)
		}
	}

	return survivors
}

// groupKeys returns every grouping key the result belongs to.
func groupKeys(r *Result, distinctOn string) []groupKey {
	if distinctOn == "" {
		return []groupKey{{testcase: r.TestcaseName}}
	}

	var keys []groupKey

	dedup := make(map[string]bool, 1)

	for _, d := range r.Data {
		if d.Key != distinctOn || dedup[d.Value] {
			continue
		}

		dedup[d.Value] = true

		keys = append(keys, groupKey{
			testcase: r.TestcaseName,
			value:    d.Value,
			hasValue: true,
		})
	}

	if len(keys) == 0 {
		keys = append(keys, groupKey{testcase: r.TestcaseName})
	}

	return keys
}

func reverse(results []Result) {
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
}
