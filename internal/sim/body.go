package sim

import (
	"fmt"

	"github.com/dyluth/sortie/internal/explorer"
	"github.com/dyluth/sortie/internal/grid"
)

// Body is an explorer's physical presence in the world. It implements
// explorer.Body.
type Body struct {
	world  *World
	costs  Costs
	pos    grid.Position
	budget float64
	moves  int
}

// NewBody places a body on a free cell with a starting budget.
func (w *World) NewBody(start grid.Position, budget float64, costs Costs) (*Body, error) {
	if w.Status(start) != grid.Clear {
		return nil, fmt.Errorf("start %s is not a free cell", start)
	}
	return &Body{world: w, costs: costs, pos: start, budget: budget}, nil
}

var _ explorer.Body = (*Body)(nil)

func (b *Body) Position() grid.Position  { return b.pos }
func (b *Body) RemainingBudget() float64 { return b.budget }

// Moves returns the number of executed moves.
func (b *Body) Moves() int { return b.moves }

// Move charges the move cost whether or not the move succeeds.
func (b *Body) Move(dir grid.Direction) explorer.MoveResult {
	if !dir.Valid() {
		return explorer.Blocked
	}
	if dir.Diagonal() {
		b.budget -= b.costs.Diag
	} else {
		b.budget -= b.costs.Line
	}

	next := b.pos.Add(dir)
	if b.world.Status(next) != grid.Clear {
		return explorer.Blocked
	}
	b.pos = next
	b.moves++
	return explorer.Executed
}

// SenseSurroundings reports the eight neighbouring cells.
func (b *Body) SenseSurroundings() [grid.NumDirections]grid.CellStatus {
	var out [grid.NumDirections]grid.CellStatus
	for _, d := range grid.Directions() {
		out[d] = b.world.Status(b.pos.Add(d))
	}
	return out
}

// SenseTarget reports the target on the current cell.
func (b *Body) SenseTarget() (string, bool) {
	t, ok := b.world.TargetAt(b.pos)
	return t.ID, ok
}

// ReadSignals charges the read cost. Without enough budget the read fails
// and the budget is exhausted.
func (b *Body) ReadSignals() ([]float64, explorer.ReadStatus) {
	if b.budget < b.costs.Read {
		b.budget = 0
		return nil, explorer.ReadTimeExceeded
	}
	b.budget -= b.costs.Read

	t, ok := b.world.TargetAt(b.pos)
	if !ok {
		return nil, explorer.ReadOK
	}
	return append([]float64(nil), t.Signals...), explorer.ReadOK
}
