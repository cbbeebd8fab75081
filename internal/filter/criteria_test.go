package filter

import (
	"testing"
	"time"

	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignment(recipient string, createdAtMs int64, survival ...float64) *blackboard.Assignment {
	a := &blackboard.Assignment{Recipient: recipient, CreatedAtMs: createdAtMs}
	for _, s := range survival {
		a.Targets = append(a.Targets, blackboard.TriagedTarget{Survival: s})
	}
	return a
}

func TestCriteria_Matches(t *testing.T) {
	a := assignment("RESCUER_2", 2000, 0.8, 0.3)

	tests := []struct {
		name     string
		criteria *Criteria
		want     bool
	}{
		{name: "nil criteria", criteria: nil, want: true},
		{name: "empty criteria", criteria: &Criteria{}, want: true},
		{name: "since before", criteria: &Criteria{SinceTimestampMs: 1000}, want: true},
		{name: "since after", criteria: &Criteria{SinceTimestampMs: 3000}, want: false},
		{name: "until after", criteria: &Criteria{UntilTimestampMs: 3000}, want: true},
		{name: "until before", criteria: &Criteria{UntilTimestampMs: 1000}, want: false},
		{name: "glob match", criteria: &Criteria{RecipientGlob: "RESCUER_*"}, want: true},
		{name: "glob miss", criteria: &Criteria{RecipientGlob: "MEDIC_*"}, want: false},
		{name: "malformed glob", criteria: &Criteria{RecipientGlob: "["}, want: false},
		{name: "survival reached", criteria: &Criteria{MinSurvival: 0.8}, want: true},
		{name: "survival missed", criteria: &Criteria{MinSurvival: 0.9}, want: false},
		{name: "all combined", criteria: &Criteria{SinceTimestampMs: 1, UntilTimestampMs: 5000, RecipientGlob: "*_2", MinSurvival: 0.5}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(a))
		})
	}

	t.Run("empty group never reaches a survival bound", func(t *testing.T) {
		assert.False(t, (&Criteria{MinSurvival: 0.1}).Matches(assignment("R", 1)))
	})
}

func TestCriteria_Apply(t *testing.T) {
	in := []*blackboard.Assignment{
		assignment("RESCUER_1", 1, 0.9),
		assignment("RESCUER_2", 2, 0.2),
		assignment("RESCUER_3", 3, 0.7),
	}
	out := (&Criteria{MinSurvival: 0.5}).Apply(in)
	require.Len(t, out, 2)
	assert.Equal(t, "RESCUER_1", out[0].Recipient)
	assert.Equal(t, "RESCUER_3", out[1].Recipient)
	assert.Len(t, in, 3)
	assert.Equal(t, "RESCUER_2", in[1].Recipient)
}

func TestParseTime(t *testing.T) {
	now := time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

	t.Run("duration", func(t *testing.T) {
		ms, err := ParseTime("1h30m", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-90*time.Minute).UnixMilli(), ms)
	})

	t.Run("rfc3339", func(t *testing.T) {
		ms, err := ParseTime("2025-10-29T13:00:00Z", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 10, 29, 13, 0, 0, 0, time.UTC).UnixMilli(), ms)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseTime("yesterday", now)
		assert.ErrorContains(t, err, "invalid time specification: yesterday")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseTime("", now)
		assert.Error(t, err)
	})
}

func TestCriteria_WithTimeRange(t *testing.T) {
	now := time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

	t.Run("both bounds", func(t *testing.T) {
		var c Criteria
		require.NoError(t, c.WithTimeRange("2h", "1h", now))
		assert.Equal(t, now.Add(-2*time.Hour).UnixMilli(), c.SinceTimestampMs)
		assert.Equal(t, now.Add(-time.Hour).UnixMilli(), c.UntilTimestampMs)
	})

	t.Run("open bounds", func(t *testing.T) {
		var c Criteria
		require.NoError(t, c.WithTimeRange("", "", now))
		assert.Zero(t, c.SinceTimestampMs)
		assert.Zero(t, c.UntilTimestampMs)
	})

	t.Run("inverted range", func(t *testing.T) {
		var c Criteria
		assert.EqualError(t, c.WithTimeRange("1h", "2h", now), "--since must be before --until")
	})

	t.Run("bad since", func(t *testing.T) {
		var c Criteria
		assert.ErrorContains(t, c.WithTimeRange("soon", "", now), "invalid --since")
	})
}
