package sqlitedb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NullableString maps "" to SQL NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// NullableInt64 maps 0 to SQL NULL.
func NullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// Timestamp formats t the way every table stores times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime accepts RFC3339Nano and SQLite's default datetime layout.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// Placeholders returns "?,?,?" for count arguments.
func Placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// MarshalJSON encodes a column value, storing empty slices and zero values as NULL.
func MarshalJSON(value any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

// UnmarshalJSON decodes a nullable JSON column into dst. Empty input leaves dst untouched.
func UnmarshalJSON(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
