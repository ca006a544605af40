package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts accepted for submit_time and since values. Offsets may
// be spelled "", "Z", "+00:00", "+0000" or "+00"; the parsed value is
// normalized to naive UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp or an epoch-milliseconds
// number string and returns it as naive UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if isDigits(value) {
		millis, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return time.UnixMilli(millis).UTC(), nil
		}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, Validationf(
		"Expected timestamp in milliseconds or datetime"+
			" (in format YYYY-MM-DDTHH:MM:SS.ffffff), got %q", value)
}

// ParseSubmitTime converts a decoded JSON submit_time value (number,
// numeric string or ISO-8601 string) to naive UTC.
func ParseSubmitTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case string:
		return ParseTimestamp(v)
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	default:
		return time.Time{}, Validationf(
			"Expected timestamp in milliseconds or datetime"+
				" (in format YYYY-MM-DDTHH:MM:SS.ffffff), got %v", value)
	}
}

// FormatTimestamp renders a time as naive UTC ISO-8601 with microsecond
// precision. The fraction is omitted when zero, matching the original
// service's output.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()

	micros := t.Nanosecond() / int(time.Microsecond)
	if micros == 0 {
		return t.Format("2006-01-02T15:04:05")
	}

	return fmt.Sprintf("%s.%06d", t.Format("2006-01-02T15:04:05"), micros)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	return strings.IndexFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	}) < 0
}
