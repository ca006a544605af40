// Package query turns raw result-filter parameters into typed predicate
// specs consumed by the store's query builder.
package query

import (
	"sort"
	"strings"
	"time"
)

// Field identifies what a predicate matches against.
type Field int

const (
	// FieldOutcome matches the result outcome column.
	FieldOutcome Field = iota
	// FieldTestcase matches the owning testcase name.
	FieldTestcase
	// FieldGroup matches group membership by uuid.
	FieldGroup
	// FieldData matches a result_data key/value pair.
	FieldData
)

// Reserved filter keys. Everything else (without a leading underscore) is
// treated as a result-data key.
const (
	keyOutcome    = "outcome"
	keyTestcases  = "testcases"
	keyGroups     = "groups"
	keySince      = "since"
	keySort       = "_sort"
	keyDistinctOn = "_distinct_on"
	keyPage       = "page"
	keyLimit      = "limit"

	likeSuffix = ":like"
)

// Predicate is one typed filter condition. Values are OR-ed together;
// separate predicates are AND-ed by the query builder.
type Predicate struct {
	Field   Field
	DataKey string
	Like    bool
	Values  []string
}

// TimeRange restricts submit_time to [Start, End) when End is set, or to
// submit_time >= Start otherwise.
type TimeRange struct {
	Start time.Time
	End   *time.Time
}

// SortSpec selects the result ordering. Ties on the sort field are always
// broken by result id in the same direction, since submit_time has finite
// precision and concurrent submissions can collide.
type SortSpec struct {
	Field      string
	Descending bool
}

// Filters is the parsed form of a result query.
type Filters struct {
	Predicates []Predicate
	Since      *TimeRange
	Sort       SortSpec
	DistinctOn string
}

// HasConstraints reports whether any filter besides _distinct_on was given.
func (f *Filters) HasConstraints() bool {
	return len(f.Predicates) > 0 || f.Since != nil
}

// DefaultSort is the ordering applied when _sort is absent.
var DefaultSort = SortSpec{Field: "submit_time", Descending: true}

// ParseFilters parses raw query parameters into Filters. Unknown
// underscore-prefixed control keys are ignored; any other unreserved key
// becomes a result-data predicate. Comma-separated values become an OR
// list. Empty values and absent keys mean "no constraint".
func ParseFilters(raw map[string]string) (*Filters, error) {
	filters := &Filters{Sort: DefaultSort}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if value == "" {
			continue
		}

		// Control keys match by exact name only; a :like suffix never
		// applies to them.
		switch key {
		case keySince:
			since, err := parseSince(value)
			if err != nil {
				return nil, err
			}

			filters.Since = since

			continue
		case keySort:
			sortSpec, err := parseSort(value)
			if err != nil {
				return nil, err
			}

			filters.Sort = sortSpec

			continue
		case keyDistinctOn:
			filters.DistinctOn = value

			continue
		case keyPage, keyLimit:
			// Pagination is applied by the HTTP layer after filtering.
			continue
		}

		name, like := strings.CutSuffix(key, likeSuffix)

		switch name {
		case keyOutcome:
			filters.Predicates = append(filters.Predicates, Predicate{
				Field:  FieldOutcome,
				Like:   like,
				Values: splitValues(value),
			})
		case keyTestcases:
			filters.Predicates = append(filters.Predicates, Predicate{
				Field:  FieldTestcase,
				Like:   like,
				Values: splitValues(value),
			})
		case keyGroups:
			filters.Predicates = append(filters.Predicates, Predicate{
				Field:  FieldGroup,
				Like:   like,
				Values: splitValues(value),
			})
		default:
			if strings.HasPrefix(name, "_") {
				continue
			}

			filters.Predicates = append(filters.Predicates, Predicate{
				Field:   FieldData,
				DataKey: name,
				Like:    like,
				Values:  splitValues(value),
			})
		}
	}

	return filters, nil
}

// TranslatePattern converts the public wildcard syntax (*) to the SQL LIKE
// wildcard (%).
func TranslatePattern(value string) string {
	return strings.ReplaceAll(value, "*", "%")
}

func splitValues(value string) []string {
	return strings.Split(value, ",")
}

func parseSince(value string) (*TimeRange, error) {
	parts := strings.Split(value, ",")
	if len(parts) > 2 {
		return nil, Validationf(
			"since accepts at most two timestamps, got %d", len(parts))
	}

	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return nil, err
	}

	since := &TimeRange{Start: start}

	if len(parts) == 2 {
		end, err := ParseTimestamp(parts[1])
		if err != nil {
			return nil, err
		}

		since.End = &end
	}

	return since, nil
}

func parseSort(value string) (SortSpec, error) {
	direction, field, found := strings.Cut(value, ":")
	if !found {
		return SortSpec{}, Validationf("invalid _sort value: %q", value)
	}

	var descending bool

	switch direction {
	case "asc":
		descending = false
	case "desc":
		descending = true
	default:
		return SortSpec{}, Validationf(
			"invalid _sort direction: %q", direction)
	}

	if field != "submit_time" {
		return SortSpec{}, Validationf("unknown _sort field: %q", field)
	}

	return SortSpec{Field: field, Descending: descending}, nil
}
