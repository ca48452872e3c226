package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets YAML carry values like "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or a nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }
