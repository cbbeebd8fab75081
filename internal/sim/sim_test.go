package sim

import (
	"context"
	"math/rand"
	"testing"

	"github.com/dyluth/sortie/internal/coordinator"
	"github.com/dyluth/sortie/internal/explorer"
	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorld(t *testing.T) {
	_, err := NewWorld(0, 5, nil, nil)
	assert.Error(t, err)

	_, err = NewWorld(5, 5, []grid.Position{grid.Pos(5, 0)}, nil)
	assert.Error(t, err)

	_, err = NewWorld(5, 5, []grid.Position{grid.Pos(1, 1)}, []Target{{ID: "a", Position: grid.Pos(1, 1)}})
	assert.Error(t, err, "target on a wall")

	_, err = NewWorld(5, 5, nil, []Target{{ID: "a", Position: grid.Pos(1, 1)}, {ID: "a", Position: grid.Pos(2, 1)}})
	assert.Error(t, err, "duplicate id")

	w, err := NewWorld(5, 5, []grid.Position{grid.Pos(1, 1)}, []Target{{ID: "a", Position: grid.Pos(3, 3)}})
	require.NoError(t, err)
	assert.Equal(t, grid.Obstacle, w.Status(grid.Pos(1, 1)))
	assert.Equal(t, grid.Boundary, w.Status(grid.Pos(-1, 0)))
	assert.Equal(t, grid.Clear, w.Status(grid.Pos(0, 0)))
	assert.Equal(t, 1, w.TargetCount())
}

func TestBody(t *testing.T) {
	w, err := NewWorld(3, 3, []grid.Position{grid.Pos(1, 0)}, []Target{{ID: "a", Position: grid.Pos(1, 1), Signals: []float64{4, 5}}})
	require.NoError(t, err)

	_, err = w.NewBody(grid.Pos(1, 0), 10, DefaultCosts)
	assert.Error(t, err, "cannot start on a wall")

	b, err := w.NewBody(grid.Pos(0, 0), 10, DefaultCosts)
	require.NoError(t, err)

	t.Run("blocked move still costs", func(t *testing.T) {
		assert.Equal(t, explorer.Blocked, b.Move(grid.East))
		assert.Equal(t, grid.Pos(0, 0), b.Position())
		assert.Equal(t, 9.0, b.RemainingBudget())
	})

	t.Run("diagonal move", func(t *testing.T) {
		assert.Equal(t, explorer.Executed, b.Move(grid.SouthEast))
		assert.Equal(t, grid.Pos(1, 1), b.Position())
		assert.Equal(t, 7.5, b.RemainingBudget())
		assert.Equal(t, 1, b.Moves())
	})

	t.Run("senses", func(t *testing.T) {
		s := b.SenseSurroundings()
		assert.Equal(t, grid.Obstacle, s[grid.North])
		assert.Equal(t, grid.Clear, s[grid.South])

		id, ok := b.SenseTarget()
		require.True(t, ok)
		assert.Equal(t, "a", id)
	})

	t.Run("read", func(t *testing.T) {
		signals, status := b.ReadSignals()
		assert.Equal(t, explorer.ReadOK, status)
		assert.Equal(t, []float64{4, 5}, signals)
		assert.Equal(t, 5.5, b.RemainingBudget())
	})

	t.Run("read without budget", func(t *testing.T) {
		b.budget = 1
		_, status := b.ReadSignals()
		assert.Equal(t, explorer.ReadTimeExceeded, status)
		assert.Zero(t, b.RemainingBudget())
	})
}

type countingMind struct {
	id    string
	steps int
	limit int
}

func (m *countingMind) ID() string { return m.id }
func (m *countingMind) Deliberate(ctx context.Context) bool {
	m.steps++
	return m.steps < m.limit
}

type tickCounter map[string]int

func (c tickCounter) Tick(id string) { c[id]++ }

func TestScheduler_Run(t *testing.T) {
	ticks := tickCounter{}
	s := NewScheduler(ticks)

	a, err := s.Add(&countingMind{id: "a", limit: 3}, nil, StateActive)
	require.NoError(t, err)
	_, err = s.Add(&countingMind{id: "b", limit: 5}, nil, StateActive)
	require.NoError(t, err)
	idle, err := s.Add(&countingMind{id: "c", limit: 1}, nil, StateIdle)
	require.NoError(t, err)

	_, err = s.Add(&countingMind{id: "a"}, nil, StateActive)
	assert.Error(t, err)
	_, err = s.Add(nil, nil, StateActive)
	assert.Error(t, err)

	stats, err := s.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Ticks)
	assert.True(t, stats.Completed)
	assert.Equal(t, StateEnded, a.State())
	assert.Equal(t, StateIdle, idle.State(), "idle agents are never scheduled")
	assert.Equal(t, map[string]int{"ended": 2, "idle": 1}, stats.States)
	assert.Equal(t, 3, ticks["a"])
	assert.Equal(t, 5, ticks["b"])
}

func TestScheduler_MaxTicksAndCancel(t *testing.T) {
	s := NewScheduler(nil)
	_, err := s.Add(&countingMind{id: "forever", limit: 1 << 30}, nil, StateActive)
	require.NoError(t, err)

	stats, err := s.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Ticks)
	assert.False(t, stats.Completed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_DeadAgent(t *testing.T) {
	w, err := NewWorld(3, 3, nil, nil)
	require.NoError(t, err)
	b, err := w.NewBody(grid.Pos(0, 0), -1, DefaultCosts)
	require.NoError(t, err)

	s := NewScheduler(nil)
	a, err := s.Add(&countingMind{id: "x", limit: 100}, b, StateActive)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, StateDead, a.State())
	assert.True(t, a.Terminal())
}

// TestThreeExplorersEmptyGrid runs the classic three-sector split on an
// empty 5x5 grid with home at the centre.
func TestThreeExplorersEmptyGrid(t *testing.T) {
	ctx := context.Background()
	home := grid.Pos(2, 2)
	bounds := grid.Bounds{Width: 5, Height: 5}

	w, err := NewWorld(5, 5, nil, nil)
	require.NoError(t, err)

	north, _ := explorer.HalfPlane(home, explorer.SideNorth)
	se, _ := explorer.Quadrant(home, explorer.SideSouth, explorer.SideEast)
	sw, _ := explorer.Quadrant(home, explorer.SideSouth, explorer.SideWest)

	reg := coordinator.NewRegistry()
	leaderCoord, err := coordinator.NewLeader("EXPLORER_1", reg, coordinator.WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	s := NewScheduler(nil)
	specs := []struct {
		profile explorer.Profile
		opts    []explorer.Option
	}{
		{explorer.Profile{ID: "EXPLORER_1", Role: blackboard.RoleExplorerLeader, Home: home, Sector: north, Goal: grid.Pos(2, 0), Bounds: bounds, LeaderMargin: 4},
			[]explorer.Option{explorer.WithCoordinator(leaderCoord)}},
		{explorer.Profile{ID: "EXPLORER_2", Role: blackboard.RoleExplorerFollower, Home: home, Sector: se, Goal: grid.Pos(4, 4), Bounds: bounds}, nil},
		{explorer.Profile{ID: "EXPLORER_3", Role: blackboard.RoleExplorerFollower, Home: home, Sector: sw, Goal: grid.Pos(0, 4), Bounds: bounds}, nil},
	}

	var explorers []*explorer.Explorer
	for _, spec := range specs {
		body, err := w.NewBody(home, 500, DefaultCosts)
		require.NoError(t, err)
		ex, err := explorer.New(spec.profile, body, spec.opts...)
		require.NoError(t, err)
		agent, err := s.Add(ex, body, StateActive)
		require.NoError(t, err)
		if !spec.profile.Role.IsLeader() {
			require.NoError(t, reg.AddPeer(PeerHandle(agent, ex)))
		}
		explorers = append(explorers, ex)
	}

	stats, err := s.Run(ctx, 50)
	require.NoError(t, err)
	assert.True(t, stats.Completed, "all explorers terminate within 50 ticks")
	assert.LessOrEqual(t, stats.Ticks, 50)

	for _, ex := range explorers {
		assert.Equal(t, explorer.StateDone, ex.State(), ex.ID())
	}

	report, ok := leaderCoord.Report()
	require.True(t, ok)
	assert.Zero(t, report.UniqueTargets)
	assert.Equal(t, 0.0, report.Overlap)
}
