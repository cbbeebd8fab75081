package filter

import (
	"fmt"
	"time"
)

// ParseTime turns a time specification into Unix milliseconds.
// Accepts an RFC3339 timestamp ("2025-10-29T13:00:00Z") or a Go duration
// ("1h30m") meaning that long before now.
func ParseTime(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d).UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// WithTimeRange fills the time bounds of c from --since/--until values.
// Empty values leave the bound open.
func (c *Criteria) WithTimeRange(since, until string, now time.Time) error {
	var err error
	if since != "" {
		if c.SinceTimestampMs, err = ParseTime(since, now); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if c.UntilTimestampMs, err = ParseTime(until, now); err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
	}
	if c.SinceTimestampMs > 0 && c.UntilTimestampMs > 0 && c.SinceTimestampMs >= c.UntilTimestampMs {
		return fmt.Errorf("--since must be before --until")
	}
	return nil
}
