package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from either a Go duration string
// ("90s", "5m") or a bare integer number of seconds.
type Duration struct {
	time.Duration
}

// Seconds returns a Duration of n seconds.
func Seconds(n int64) Duration { return Duration{time.Duration(n) * time.Second} }

// ParseDuration parses s as a Go duration or an integer number of seconds.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Duration{}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Seconds(n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid duration %q: want e.g. 90s or integer seconds", s)
	}
	return Duration{d}, nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := ParseDuration(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	return d.UnmarshalText([]byte(n.String()))
}
