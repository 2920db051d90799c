package timing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LapTime is a lap or sector duration with lap-time formatting.
type LapTime time.Duration

// Duration returns the underlying duration.
func (t LapTime) Duration() time.Duration { return time.Duration(t) }

// Minutes returns the whole minutes of the lap time.
func (t LapTime) Minutes() int {
	return int(time.Duration(t).Abs() / time.Minute)
}

// Seconds returns the whole seconds past the minute.
func (t LapTime) Seconds() int {
	return int(time.Duration(t).Abs() % time.Minute / time.Second)
}

// Milliseconds returns the milliseconds past the second, truncated.
func (t LapTime) Milliseconds() int {
	return int(time.Duration(t).Abs() % time.Second / time.Millisecond)
}

// String formats the lap time as m:ss.mmm, e.g. 1:29.123.
func (t LapTime) String() string {
	sign := ""
	if t < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d:%02d.%03d", sign, t.Minutes(), t.Seconds(), t.Milliseconds())
}

// MarshalJSON encodes the lap time in lap-time notation.
func (t LapTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts lap-time notation strings or numeric seconds.
func (t *LapTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := ParseLapTime(s)
		if err != nil {
			return err
		}
		*t = v
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("lap time must be a string or number: %w", err)
	}
	*t = FromSeconds(secs)
	return nil
}

// FromSeconds converts fractional seconds to a LapTime, rounded to the microsecond.
func FromSeconds(secs float64) LapTime {
	return LapTime(time.Duration(math.Round(secs*1e6)) * time.Microsecond)
}

// ParseLapTime parses "m:ss.mmm", "h:mm:ss.mmm", "ss.mmm" or a Go duration
// string such as "1m29.123s".
func ParseLapTime(s string) (LapTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty lap time")
	}

	if !strings.Contains(s, ":") {
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return FromSeconds(secs), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid lap time %q: %w", s, err)
		}
		return LapTime(d), nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid lap time %q", s)
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 || secs >= 60 {
		return 0, fmt.Errorf("invalid seconds in lap time %q", s)
	}

	total := secs
	unit := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid lap time %q", s)
		}
		total += float64(n) * unit
		unit *= 60
	}

	return FromSeconds(total), nil
}
