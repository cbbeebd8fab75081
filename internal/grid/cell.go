package grid

import "fmt"

// CellStatus is what a neighbourhood scan reports for a cell.
type CellStatus string

const (
	// Clear cells can be entered.
	Clear CellStatus = "clear"

	// Obstacle cells are walls, debris, or cells an agent has fenced off for itself.
	Obstacle CellStatus = "obstacle"

	// Boundary cells lie outside the grid.
	Boundary CellStatus = "boundary"
)

// Validate checks that the status is a known value.
func (s CellStatus) Validate() error {
	switch s {
	case Clear, Obstacle, Boundary:
		return nil
	default:
		return fmt.Errorf("unknown cell status: %q", s)
	}
}

// Blocking reports whether an agent can never enter a cell with this status.
func (s CellStatus) Blocking() bool {
	return s == Obstacle || s == Boundary
}
