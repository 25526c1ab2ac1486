package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/carelake/carelake/internal/silver"
)

// Bronze values arrive untyped: TEXT columns surface as string, absent cells
// as nil, and test fixtures may carry native numbers. The coercion helpers
// accept any of those and report failure with a bool rather than an error so
// callers can turn it into a row-level violation.

// parseInt coerces values like "000123" or "46601.0" to integers. Integer
// parsing is tried first, then a float parse truncated toward zero.
func parseInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return truncateToInt(v)
	case float32:
		return truncateToInt(float64(v))
	}
	s := strings.TrimSpace(formatRaw(raw))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return truncateToInt(f)
}

func truncateToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// parseFloat coerces monetary values. NaN and infinities are failures: they
// have no NUMERIC representation.
func parseFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case float32:
		return parseFloat(float64(v))
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	s := strings.TrimSpace(formatRaw(raw))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// parseDate accepts ISO dates and the handful of timestamp shapes that show
// up in exported CSVs. The time-of-day portion, if any, is kept; DATE columns
// truncate it on insert.
func parseDate(raw any) (time.Time, bool) {
	if t, ok := raw.(time.Time); ok {
		return t, true
	}
	s := strings.TrimSpace(formatRaw(raw))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// capitalize upper-cases the first rune and lower-cases the rest. The input
// is not trimmed: status values with stray whitespace fail the enum check and
// surface as rejects instead of being silently repaired.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// normalizeGender maps free-form gender markers onto M, F or Other. Anything
// unrecognized becomes Other; gender never rejects a row.
func normalizeGender(raw any) string {
	switch strings.ToLower(strings.TrimSpace(formatRaw(raw))) {
	case "m", "male":
		return silver.GenderMale
	case "f", "female":
		return silver.GenderFemale
	default:
		return silver.GenderOther
	}
}

// formatRaw renders a bronze value for reject reasons. NULL prints as "null"
// so reasons stay unambiguous in the audit trail.
func formatRaw(raw any) string {
	if raw == nil {
		return "null"
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}

// stringOrNil passes free-text columns through untouched, keeping NULL as nil.
func stringOrNil(raw any) *string {
	if raw == nil {
		return nil
	}
	s := formatRaw(raw)
	return &s
}

// trimmedString renders and trims a value, mapping NULL to the empty string.
func trimmedString(raw any) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(formatRaw(raw))
}
