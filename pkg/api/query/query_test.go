package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hluk/resultsdb/pkg/api/query"
)

func TestParseFilters_Empty(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{})
	require.NoError(t, err)

	assert.Empty(t, filters.Predicates)
	assert.Nil(t, filters.Since)
	assert.Equal(t, query.DefaultSort, filters.Sort)
	assert.Empty(t, filters.DistinctOn)
	assert.False(t, filters.HasConstraints())
}

func TestParseFilters_ReservedKeys(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"outcome":   "PASSED,FAILED",
		"testcases": "compose.install-default",
		"groups":    "27f94e36-62ec-11e6-83dd-001a4a5e6e06",
	})
	require.NoError(t, err)
	require.Len(t, filters.Predicates, 3)

	byField := map[query.Field]query.Predicate{}
	for _, p := range filters.Predicates {
		byField[p.Field] = p
	}

	assert.Equal(t, []string{"PASSED", "FAILED"},
		byField[query.FieldOutcome].Values)
	assert.Equal(t, []string{"compose.install-default"},
		byField[query.FieldTestcase].Values)
	assert.Equal(t, []string{"27f94e36-62ec-11e6-83dd-001a4a5e6e06"},
		byField[query.FieldGroup].Values)
	assert.True(t, filters.HasConstraints())
}

func TestParseFilters_LikeSuffix(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"testcases:like": "compose.*",
	})
	require.NoError(t, err)
	require.Len(t, filters.Predicates, 1)

	p := filters.Predicates[0]
	assert.Equal(t, query.FieldTestcase, p.Field)
	assert.True(t, p.Like)
	assert.Equal(t, []string{"compose.*"}, p.Values)
}

func TestParseFilters_DataKeys(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"item":      "grub2",
		"arch:like": "x86*,ppc*",
	})
	require.NoError(t, err)
	require.Len(t, filters.Predicates, 2)

	byKey := map[string]query.Predicate{}
	for _, p := range filters.Predicates {
		require.Equal(t, query.FieldData, p.Field)
		byKey[p.DataKey] = p
	}

	assert.Equal(t, []string{"grub2"}, byKey["item"].Values)
	assert.False(t, byKey["item"].Like)
	assert.Equal(t, []string{"x86*", "ppc*"}, byKey["arch"].Values)
	assert.True(t, byKey["arch"].Like)
}

func TestParseFilters_UnderscoreKeysIgnored(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"_distinct_on": "scenario",
		"_unknown":     "anything",
		"page":         "3",
		"limit":        "10",
	})
	require.NoError(t, err)

	assert.Empty(t, filters.Predicates)
	assert.Equal(t, "scenario", filters.DistinctOn)
	assert.False(t, filters.HasConstraints())
}

func TestParseFilters_EmptyValuesSkipped(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"outcome": "",
		"item":    "",
	})
	require.NoError(t, err)
	assert.Empty(t, filters.Predicates)
}

func TestParseFilters_Since(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"since": "2016-08-15T13:00:00",
	})
	require.NoError(t, err)
	require.NotNil(t, filters.Since)

	assert.Equal(t,
		time.Date(2016, 8, 15, 13, 0, 0, 0, time.UTC),
		filters.Since.Start)
	assert.Nil(t, filters.Since.End)
	assert.True(t, filters.HasConstraints())
}

func TestParseFilters_SinceRange(t *testing.T) {
	filters, err := query.ParseFilters(map[string]string{
		"since": "2016-08-15T13:00:00,2016-08-15T16:00:00",
	})
	require.NoError(t, err)
	require.NotNil(t, filters.Since)
	require.NotNil(t, filters.Since.End)

	assert.Equal(t,
		time.Date(2016, 8, 15, 13, 0, 0, 0, time.UTC),
		filters.Since.Start)
	assert.Equal(t,
		time.Date(2016, 8, 15, 16, 0, 0, 0, time.UTC),
		*filters.Since.End)
}

func TestParseFilters_SinceTooManyValues(t *testing.T) {
	_, err := query.ParseFilters(map[string]string{
		"since": "2016-08-15T13:00:00,2016-08-15T16:00:00,2016-08-15T18:00:00",
	})
	require.Error(t, err)

	var verr *query.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "at most two timestamps")
}

func TestParseFilters_ControlKeysNeverLike(t *testing.T) {
	// The :like suffix only applies to filter keys, so "since:like" is an
	// ordinary result-data key named "since", not a since range.
	filters, err := query.ParseFilters(map[string]string{
		"since:like": "2016*",
	})
	require.NoError(t, err)
	require.Nil(t, filters.Since)
	require.Len(t, filters.Predicates, 1)

	p := filters.Predicates[0]
	assert.Equal(t, query.FieldData, p.Field)
	assert.Equal(t, "since", p.DataKey)
	assert.True(t, p.Like)

	// Underscore control keys with the suffix stay ignored.
	filters, err = query.ParseFilters(map[string]string{
		"_sort:like": "desc:*",
	})
	require.NoError(t, err)
	assert.Empty(t, filters.Predicates)
	assert.Equal(t, query.DefaultSort, filters.Sort)
}

func TestParseFilters_SinceInvalid(t *testing.T) {
	_, err := query.ParseFilters(map[string]string{
		"since": "not-a-timestamp",
	})
	require.Error(t, err)

	var verr *query.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseFilters_Sort(t *testing.T) {
	tests := []struct {
		value      string
		descending bool
		wantErr    bool
	}{
		{value: "asc:submit_time", descending: false},
		{value: "desc:submit_time", descending: true},
		{value: "submit_time", wantErr: true},
		{value: "up:submit_time", wantErr: true},
		{value: "asc:outcome", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			filters, err := query.ParseFilters(map[string]string{
				"_sort": tt.value,
			})

			if tt.wantErr {
				require.Error(t, err)

				var verr *query.ValidationError
				assert.ErrorAs(t, err, &verr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "submit_time", filters.Sort.Field)
			assert.Equal(t, tt.descending, filters.Sort.Descending)
		})
	}
}

func TestTranslatePattern(t *testing.T) {
	assert.Equal(t, "compose.%", query.TranslatePattern("compose.*"))
	assert.Equal(t, "%install%", query.TranslatePattern("*install*"))
	assert.Equal(t, "plain", query.TranslatePattern("plain"))
}
