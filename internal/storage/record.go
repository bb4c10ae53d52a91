package storage

import (
	"strconv"
	"time"
)

// Record is one row of a table, keyed by column name. The adapter stores
// timestamps as RFC3339 strings so records look the same regardless of
// whether they travelled through JSON or a SQL driver.
type Record map[string]any

// String returns the named column as a string, or "" when absent.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return ""
	}
}

// Int returns the named column as an int, tolerating the numeric types the
// different backends produce (int64 from SQL drivers, float64 from JSON).
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Time returns the named column as a time.Time, parsing RFC3339 strings and
// passing through native time values. The zero time is returned when the
// column is absent or unparseable.
func (r Record) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
