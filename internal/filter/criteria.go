package filter

import (
	"path/filepath"

	"github.com/dyluth/sortie/pkg/blackboard"
)

// Criteria selects assignments. All set fields must match; zero values match everything.
type Criteria struct {
	SinceTimestampMs int64   // Created at or after, 0 = no bound
	UntilTimestampMs int64   // Created at or before, 0 = no bound
	RecipientGlob    string  // filepath.Match pattern on the recipient ID
	MinSurvival      float64 // Best survival in the group must reach this
}

// Matches reports whether a passes every criterion.
func (c *Criteria) Matches(a *blackboard.Assignment) bool {
	if c == nil {
		return true
	}
	if c.SinceTimestampMs > 0 && a.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && a.CreatedAtMs > c.UntilTimestampMs {
		return false
	}

	if c.RecipientGlob != "" {
		matched, err := filepath.Match(c.RecipientGlob, a.Recipient)
		if err != nil || !matched {
			return false
		}
	}

	// Targets are ordered by descending survival
	if c.MinSurvival > 0 && (len(a.Targets) == 0 || a.Targets[0].Survival < c.MinSurvival) {
		return false
	}
	return true
}

// Apply returns the assignments that match, preserving order.
func (c *Criteria) Apply(assignments []*blackboard.Assignment) []*blackboard.Assignment {
	out := assignments[:0:0]
	for _, a := range assignments {
		if c.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}
