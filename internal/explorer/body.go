package explorer

import "github.com/dyluth/sortie/internal/grid"

// MoveResult is the host's answer to a move attempt.
type MoveResult int

const (
	Executed MoveResult = iota
	Blocked
)

func (r MoveResult) String() string {
	if r == Executed {
		return "executed"
	}
	return "blocked"
}

// ReadStatus tags the outcome of reading a target's signals.
type ReadStatus int

const (
	ReadOK ReadStatus = iota
	// ReadTimeExceeded means the budget ran out during the read.
	ReadTimeExceeded
)

// Body is the host-owned physical side of an explorer. The host owns the
// agent's true position and its budget; the explorer only asks.
// None of these calls may panic across the boundary.
type Body interface {
	Position() grid.Position
	Move(dir grid.Direction) MoveResult
	SenseSurroundings() [grid.NumDirections]grid.CellStatus
	SenseTarget() (id string, ok bool)
	ReadSignals() ([]float64, ReadStatus)
	RemainingBudget() float64
}
