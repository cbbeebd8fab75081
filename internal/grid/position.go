// Package grid holds the geometry shared by every agent: positions on a
// bounded grid, the eight move bearings, cell statuses and the per-agent
// sparse map of visited cells and discovered obstacles.
package grid

import "fmt"

// Diagonal and orthogonal move costs. Diagonal steps cost 1.5x a straight step.
const (
	LineCost = 1.0
	DiagCost = 1.5
)

// Position is an integer cell coordinate. Y grows southwards.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Pos is shorthand for Position{X: x, Y: y}.
func Pos(x, y int) Position {
	return Position{X: x, Y: y}
}

// Add returns the position reached by applying a direction.
func (p Position) Add(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Offset returns the position shifted by (dx, dy).
func (p Position) Offset(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Less orders positions by X, then Y.
func (p Position) Less(o Position) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	return p.Y < o.Y
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Chebyshev returns max(|dx|, |dy|) between two positions.
func Chebyshev(a, b Position) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

// Heuristic is the Chebyshev distance scaled by the diagonal move cost.
// It is used both for return planning and for frontier scoring.
func Heuristic(a, b Position) float64 {
	return float64(Chebyshev(a, b)) * DiagCost
}

// StepCost returns the cost of moving between two adjacent positions.
func StepCost(a, b Position) float64 {
	if a.X != b.X && a.Y != b.Y {
		return DiagCost
	}
	return LineCost
}

// Bounds is the rectangle [0, Width) x [0, Height).
type Bounds struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Contains reports whether p lies inside the bounds.
// A zero-valued Bounds contains every position.
func (b Bounds) Contains(p Position) bool {
	if b.Width <= 0 || b.Height <= 0 {
		return true
	}
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// Cells returns Width*Height.
func (b Bounds) Cells() int {
	return b.Width * b.Height
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
