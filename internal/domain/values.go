package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	dateLayout,
}

// Lookup resolves a dotted path such as "progress.TOTAL_JOBS_IN_FEED".
func Lookup(fields map[string]any, path string) (any, bool) {
	if fields == nil {
		return nil, false
	}
	if value, ok := fields[path]; ok {
		return value, true
	}

	current := any(fields)
	for _, part := range strings.Split(path, ".") {
		nested, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = nested[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func AsString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case []byte:
		return strings.TrimSpace(string(typed))
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case float64, float32, int, int32, int64, bool, json.Number:
		return fmt.Sprint(typed)
	default:
		return ""
	}
}

// AsInt64 accepts the numeric shapes produced by JSON, BSON and SQL drivers.
func AsInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case uint32:
		return int64(typed), true
	case uint64:
		if typed > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(typed), true
	case float32:
		return floatToInt(float64(typed))
	case float64:
		return floatToInt(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed, true
		}
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(parsed)
	case string:
		trimmed := strings.TrimSpace(typed)
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return parsed, true
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(parsed)
	default:
		return 0, false
	}
}

func floatToInt(value float64) (int64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return int64(value), true
}

func AsFloat64(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		parsed, ok := AsInt64(value)
		return float64(parsed), ok
	}
}

func AsBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(typed))
		return parsed
	default:
		number, ok := AsInt64(value)
		return ok && number != 0
	}
}

// AsTime parses timestamps stored as time values, strings or unix epochs.
// Epoch values above 1e12 are read as milliseconds.
func AsTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		if typed.IsZero() {
			return time.Time{}, false
		}
		return typed.UTC(), true
	case *time.Time:
		if typed == nil {
			return time.Time{}, false
		}
		return AsTime(*typed)
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed.UTC(), true
			}
		}
		if epoch, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return epochToTime(epoch)
		}
		return time.Time{}, false
	case nil, bool:
		return time.Time{}, false
	default:
		epoch, ok := AsInt64(typed)
		if !ok {
			return time.Time{}, false
		}
		return epochToTime(epoch)
	}
}

func epochToTime(epoch int64) (time.Time, bool) {
	if epoch <= 0 {
		return time.Time{}, false
	}
	if epoch > 1e12 {
		return time.UnixMilli(epoch).UTC(), true
	}
	return time.Unix(epoch, 0).UTC(), true
}

// ParseDateBound parses a YYYY-MM-DD or RFC3339 filter bound. A date-only
// upper bound is widened to the last nanosecond of that UTC day.
func ParseDateBound(value string, upper bool) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(dateLayout, trimmed); err == nil {
		if upper {
			return parsed.Add(24*time.Hour - time.Nanosecond).UTC(), true
		}
		return parsed.UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsFeedDate reports whether value is an accepted filter date literal.
func IsFeedDate(value string) bool {
	_, ok := ParseDateBound(value, false)
	return ok
}
