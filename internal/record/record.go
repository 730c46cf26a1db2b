package record

import (
	"strings"
	"time"
)

// Record is a raw activity record as delivered by an upstream source
// (voice calls, conversational spaces, tasks, calendar events). Upstream
// shapes drift independently, so nothing here assumes a field exists or
// has the expected type; every accessor degrades to "absent".
type Record map[string]any

// AsString returns v as a non-empty trimmed string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// AsBool returns v as a bool. String forms ("true"/"false") are accepted
// because some upstreams serialize booleans as strings.
func AsBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

// AsArray returns v as a []any.
func AsArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// AsMap returns v as a nested Record.
func AsMap(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	return nil, false
}

// AsTimestamp returns v as a time. Accepted forms: RFC3339 strings
// (with or without sub-second precision), bare dates, and unix epoch
// numbers in seconds or milliseconds.
func AsTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	case float64:
		return fromEpoch(int64(t))
	case int64:
		return fromEpoch(t)
	case int:
		return fromEpoch(int64(t))
	}
	return time.Time{}, false
}

// fromEpoch treats values above 1e12 as milliseconds.
func fromEpoch(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}

// String returns the value under key as a non-empty string.
func (r Record) String(key string) (string, bool) {
	return AsString(r[key])
}

// Bool returns the value under key as a bool.
func (r Record) Bool(key string) (bool, bool) {
	return AsBool(r[key])
}

// Map returns the value under key as a nested Record.
func (r Record) Map(key string) (Record, bool) {
	return AsMap(r[key])
}

// Array returns the value under key as a slice.
func (r Record) Array(key string) ([]any, bool) {
	return AsArray(r[key])
}

// FirstString returns the first non-empty string among the given keys.
func (r Record) FirstString(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := r.String(k); ok {
			return s, true
		}
	}
	return "", false
}

// Timestamp returns the first parseable timestamp among the given keys.
func (r Record) Timestamp(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		if ts, ok := AsTimestamp(r[k]); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// StringPath walks nested maps and returns the string at the end of the
// path. Any missing or mistyped hop makes the whole path absent.
func (r Record) StringPath(path ...string) (string, bool) {
	cur := r
	for i, k := range path {
		if i == len(path)-1 {
			return cur.String(k)
		}
		next, ok := cur.Map(k)
		if !ok {
			return "", false
		}
		cur = next
	}
	return "", false
}
