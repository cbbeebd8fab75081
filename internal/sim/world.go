// Package sim is an in-process host for a mission: it owns the physical
// world, each agent's position and budget, and the tick loop.
package sim

import (
	"fmt"

	"github.com/dyluth/sortie/internal/grid"
)

// Costs are the budget charged per action.
type Costs struct {
	Line float64
	Diag float64
	Read float64
}

// DefaultCosts matches the grid move costs with a read cost of 2.
var DefaultCosts = Costs{Line: grid.LineCost, Diag: grid.DiagCost, Read: 2.0}

// Target is a target placed in the world.
type Target struct {
	ID       string
	Position grid.Position
	Signals  []float64
}

// World is the ground truth: grid size, walls and targets.
type World struct {
	bounds  grid.Bounds
	walls   map[grid.Position]bool
	targets map[grid.Position]Target
}

// NewWorld validates and builds a world.
func NewWorld(width, height int, walls []grid.Position, targets []Target) (*World, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("world dimensions must be positive, got %dx%d", width, height)
	}
	w := &World{
		bounds:  grid.Bounds{Width: width, Height: height},
		walls:   make(map[grid.Position]bool, len(walls)),
		targets: make(map[grid.Position]Target, len(targets)),
	}

	for _, p := range walls {
		if !w.bounds.Contains(p) {
			return nil, fmt.Errorf("wall %s outside the world", p)
		}
		w.walls[p] = true
	}

	ids := make(map[string]bool, len(targets))
	for _, t := range targets {
		if !w.bounds.Contains(t.Position) || w.walls[t.Position] {
			return nil, fmt.Errorf("target %s at %s is not on a free cell", t.ID, t.Position)
		}
		if ids[t.ID] {
			return nil, fmt.Errorf("duplicate target id %s", t.ID)
		}
		if _, taken := w.targets[t.Position]; taken {
			return nil, fmt.Errorf("two targets at %s", t.Position)
		}
		ids[t.ID] = true
		t.Signals = append([]float64(nil), t.Signals...)
		w.targets[t.Position] = t
	}
	return w, nil
}

// Bounds returns the grid size.
func (w *World) Bounds() grid.Bounds { return w.bounds }

// Status returns what a sensor sees at p.
func (w *World) Status(p grid.Position) grid.CellStatus {
	switch {
	case !w.bounds.Contains(p):
		return grid.Boundary
	case w.walls[p]:
		return grid.Obstacle
	default:
		return grid.Clear
	}
}

// TargetAt returns the target on p, if any.
func (w *World) TargetAt(p grid.Position) (Target, bool) {
	t, ok := w.targets[p]
	return t, ok
}

// TargetCount returns the number of targets placed.
func (w *World) TargetCount() int { return len(w.targets) }
