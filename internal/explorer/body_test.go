package explorer

import (
	"context"

	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// fakeBody is a minimal in-memory host for one explorer.
type fakeBody struct {
	bounds   grid.Bounds
	walls    map[grid.Position]bool
	targets  map[grid.Position]string
	signals  []float64
	pos      grid.Position
	budget   float64
	readCost float64
	reads    int
}

func newFakeBody(w, h int, home grid.Position, budget float64) *fakeBody {
	return &fakeBody{
		bounds:   grid.Bounds{Width: w, Height: h},
		walls:    make(map[grid.Position]bool),
		targets:  make(map[grid.Position]string),
		signals:  []float64{1, 2, 3},
		pos:      home,
		budget:   budget,
		readCost: 2,
	}
}

func (b *fakeBody) Position() grid.Position { return b.pos }

func (b *fakeBody) Move(dir grid.Direction) MoveResult {
	b.budget -= dir.Cost()
	next := b.pos.Add(dir)
	if !b.bounds.Contains(next) || b.walls[next] {
		return Blocked
	}
	b.pos = next
	return Executed
}

func (b *fakeBody) SenseSurroundings() [grid.NumDirections]grid.CellStatus {
	var out [grid.NumDirections]grid.CellStatus
	for _, d := range grid.Directions() {
		next := b.pos.Add(d)
		switch {
		case !b.bounds.Contains(next):
			out[d] = grid.Boundary
		case b.walls[next]:
			out[d] = grid.Obstacle
		default:
			out[d] = grid.Clear
		}
	}
	return out
}

func (b *fakeBody) SenseTarget() (string, bool) {
	id, ok := b.targets[b.pos]
	return id, ok
}

func (b *fakeBody) ReadSignals() ([]float64, ReadStatus) {
	b.reads++
	if b.budget < b.readCost {
		b.budget = 0
		return nil, ReadTimeExceeded
	}
	b.budget -= b.readCost
	return append([]float64(nil), b.signals...), ReadOK
}

func (b *fakeBody) RemainingBudget() float64 { return b.budget }

type fakeCoordinator struct {
	ready     bool
	readyCall int
	synced    []blackboard.WorldView
}

func (c *fakeCoordinator) Ready(ctx context.Context) bool {
	c.readyCall++
	return c.ready
}

func (c *fakeCoordinator) Synchronize(ctx context.Context, self blackboard.WorldView) blackboard.SyncReport {
	c.synced = append(c.synced, self)
	return blackboard.SyncReport{UniqueTargets: len(self.Targets)}
}

type transitionRecord struct {
	from, to State
}

type recordingObserver struct {
	transitions []transitionRecord
	replans     int
	found       []string
}

func (o *recordingObserver) StateChanged(agentID string, from, to State) {
	o.transitions = append(o.transitions, transitionRecord{from, to})
}

func (o *recordingObserver) Replanned(agentID string) { o.replans++ }

func (o *recordingObserver) TargetFound(agentID, targetID string) {
	o.found = append(o.found, targetID)
}
