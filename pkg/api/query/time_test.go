package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hluk/resultsdb/pkg/api/query"
)

func TestParseTimestamp_OffsetSpellings(t *testing.T) {
	want := time.Date(2016, 8, 15, 13, 29, 6, 0, time.UTC)

	// Every accepted spelling of a UTC offset normalizes to naive UTC.
	for _, value := range []string{
		"2016-08-15T13:29:06",
		"2016-08-15T13:29:06Z",
		"2016-08-15T13:29:06+00:00",
		"2016-08-15T13:29:06+0000",
		"2016-08-15T13:29:06+00",
	} {
		t.Run(value, func(t *testing.T) {
			got, err := query.ParseTimestamp(value)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseTimestamp_NonUTCOffset(t *testing.T) {
	got, err := query.ParseTimestamp("2016-08-15T15:29:06+02:00")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2016, 8, 15, 13, 29, 6, 0, time.UTC), got)
}

func TestParseTimestamp_Fraction(t *testing.T) {
	got, err := query.ParseTimestamp("2016-08-15T13:29:06.802345")
	require.NoError(t, err)

	want := time.Date(2016, 8, 15, 13, 29, 6, 802345000, time.UTC)
	assert.Equal(t, want, got)
}

func TestParseTimestamp_DateOnly(t *testing.T) {
	got, err := query.ParseTimestamp("2016-08-15")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2016, 8, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTimestamp_EpochMillis(t *testing.T) {
	got, err := query.ParseTimestamp("1471267746802")
	require.NoError(t, err)

	want := time.Date(2016, 8, 15, 13, 29, 6, 802000000, time.UTC)
	assert.Equal(t, want, got)
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, value := range []string{
		"",
		"yesterday",
		"2016-13-40T99:00:00",
	} {
		_, err := query.ParseTimestamp(value)
		require.Error(t, err, value)

		var verr *query.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestParseSubmitTime(t *testing.T) {
	want := time.Date(2016, 8, 15, 13, 29, 6, 802000000, time.UTC)

	// JSON numbers decode as float64.
	got, err := query.ParseSubmitTime(float64(1471267746802))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = query.ParseSubmitTime("1471267746802")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = query.ParseSubmitTime("2016-08-15T13:29:06.802")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = query.ParseSubmitTime(true)
	require.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	// The fraction is omitted when the microseconds are zero.
	whole := time.Date(2016, 8, 15, 13, 29, 6, 0, time.UTC)
	assert.Equal(t, "2016-08-15T13:29:06", query.FormatTimestamp(whole))

	fractional := time.Date(2016, 8, 15, 13, 29, 6, 802345000, time.UTC)
	assert.Equal(t, "2016-08-15T13:29:06.802345",
		query.FormatTimestamp(fractional))

	// Sub-second values keep their leading zeros.
	padded := time.Date(2016, 8, 15, 13, 29, 6, 1000, time.UTC)
	assert.Equal(t, "2016-08-15T13:29:06.000001",
		query.FormatTimestamp(padded))
}

func TestFormatTimestamp_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	local := time.Date(2016, 8, 15, 15, 29, 6, 0, loc)

	assert.Equal(t, "2016-08-15T13:29:06", query.FormatTimestamp(local))
}
