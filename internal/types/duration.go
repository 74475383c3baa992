package types

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that accepts three wire encodings for
// forward compatibility: an integer number of milliseconds, a Go duration
// string ("1.5s"), or an explicit {"secs": n, "nanos": m} object.
// Marshalling always produces integer milliseconds.
type Duration time.Duration

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON encodes the duration as integer milliseconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// UnmarshalJSON decodes any of the accepted encodings.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := durationFromAny(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML encodes the duration as integer milliseconds.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).Milliseconds(), nil
}

// UnmarshalYAML decodes any of the accepted encodings.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := durationFromAny(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func durationFromAny(raw any) (Duration, error) {
	switch v := raw.(type) {
	case float64: // JSON numbers
		return Duration(time.Duration(v) * time.Millisecond), nil
	case int:
		return Duration(time.Duration(v) * time.Millisecond), nil
	case int64:
		return Duration(time.Duration(v) * time.Millisecond), nil
	case uint64:
		return Duration(time.Duration(v) * time.Millisecond), nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, NewErrorf(SERIALIZATION_FAILED, "invalid duration string %q: %v", v, err)
		}
		return Duration(parsed), nil
	case map[string]any:
		secs, nanos, err := secsNanos(v)
		if err != nil {
			return 0, err
		}
		return Duration(time.Duration(secs)*time.Second + time.Duration(nanos)), nil
	}
	return 0, NewErrorf(SERIALIZATION_FAILED, "unsupported duration encoding %T", raw)
}

func secsNanos(m map[string]any) (int64, int64, error) {
	toInt := func(key string) (int64, error) {
		raw, ok := m[key]
		if !ok {
			return 0, nil
		}
		switch n := raw.(type) {
		case float64:
			return int64(n), nil
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case uint64:
			return int64(n), nil
		}
		return 0, NewErrorf(SERIALIZATION_FAILED, "duration field %q must be a number, got %T", key, raw)
	}

	for key := range m {
		if key != "secs" && key != "nanos" {
			return 0, 0, NewErrorf(SERIALIZATION_FAILED, "unexpected duration field %q", key)
		}
	}
	secs, err := toInt("secs")
	if err != nil {
		return 0, 0, err
	}
	nanos, err := toInt("nanos")
	if err != nil {
		return 0, 0, err
	}
	if _, ok := m["secs"]; !ok {
		if _, ok := m["nanos"]; !ok {
			return 0, 0, NewError(SERIALIZATION_FAILED, "duration object needs secs or nanos")
		}
	}
	return secs, nanos, nil
}

// FormatDurationError is a convenience used in messages.
func FormatDurationError(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
