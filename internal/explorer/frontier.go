package explorer

import (
	"math/rand"
	"sort"

	"github.com/dyluth/sortie/internal/grid"
)

// TieBreakNoise bounds the random perturbation added to frontier scores.
// Scores are multiples of grid.DiagCost, so the noise can only reorder
// directions whose heuristic distance to the goal is equal.
const TieBreakNoise = 0.1

// Backtrack is one recorded reversal move on the return stack.
type Backtrack struct {
	Dx, Dy int
	Cost   float64
}

// Direction returns the bearing of the reversal move.
func (b Backtrack) Direction() grid.Direction {
	d, _ := grid.DirectionOf(b.Dx, b.Dy)
	return d
}

// Frontier is an online depth-first planner. For each visited cell it keeps
// the list of unexplored in-sector neighbours, closest to the sector goal
// first, and it keeps a stack of reversal moves for backtracking.
type Frontier struct {
	world  *grid.Map
	sector Sector
	goal   grid.Position
	rng    *rand.Rand

	candidates map[grid.Position][]grid.Direction
	stack      []Backtrack
}

// NewFrontier creates a planner writing fenced and sensed obstacles into world.
func NewFrontier(world *grid.Map, sector Sector, goal grid.Position, rng *rand.Rand) *Frontier {
	if sector == nil {
		sector = Everywhere
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Frontier{
		world:      world,
		sector:     sector,
		goal:       goal,
		rng:        rng,
		candidates: make(map[grid.Position][]grid.Direction),
	}
}

// Expanded reports whether pos already has a candidate list.
func (f *Frontier) Expanded(pos grid.Position) bool {
	_, ok := f.candidates[pos]
	return ok
}

// Expand computes the candidate list for pos from a neighbourhood scan.
// It only runs once per position; later calls return the stored list.
func (f *Frontier) Expand(pos grid.Position, sensed [grid.NumDirections]grid.CellStatus) []grid.Direction {
	if list, ok := f.candidates[pos]; ok {
		return append([]grid.Direction(nil), list...)
	}
	list := f.Rank(pos, sensed)
	f.candidates[pos] = list
	return append([]grid.Direction(nil), list...)
}

// Rank scores every clear, in-sector, unvisited neighbour of pos and returns
// them ascending by score. Blocked neighbours and out-of-sector neighbours are
// recorded in the map as a side effect. Rank does not store the result.
func (f *Frontier) Rank(pos grid.Position, sensed [grid.NumDirections]grid.CellStatus) []grid.Direction {
	type scored struct {
		dir   grid.Direction
		score float64
	}

	var options []scored
	for _, d := range grid.Directions() {
		next := pos.Add(d)
		status := sensed[d]

		switch {
		case status.Blocking():
			f.world.RecordObstacle(next, status)
		case !f.sector.Contains(next):
			f.world.RecordObstacle(next, grid.Obstacle)
		case !f.world.IsVisited(next) && !f.world.IsObstacle(next):
			score := grid.Heuristic(next, f.goal) + f.rng.Float64()*TieBreakNoise
			options = append(options, scored{dir: d, score: score})
		}
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].score < options[j].score
	})

	out := make([]grid.Direction, len(options))
	for i, o := range options {
		out[i] = o.dir
	}
	return out
}

// Next pops the first candidate at pos that is still unexplored.
// Candidates visited or blocked since the list was built are discarded.
func (f *Frontier) Next(pos grid.Position) (grid.Direction, bool) {
	list := f.candidates[pos]
	for len(list) > 0 {
		d := list[0]
		list = list[1:]
		next := pos.Add(d)
		if f.world.IsVisited(next) || f.world.IsObstacle(next) {
			continue
		}
		f.candidates[pos] = list
		return d, true
	}
	if _, ok := f.candidates[pos]; ok {
		f.candidates[pos] = list
	}
	return 0, false
}

// PushReturn records the reversal of a move that just succeeded.
func (f *Frontier) PushReturn(moved grid.Direction) {
	dx, dy := moved.Delta()
	f.stack = append(f.stack, Backtrack{Dx: -dx, Dy: -dy, Cost: 1})
}

// PopReturn removes and returns the most recent reversal move.
func (f *Frontier) PopReturn() (Backtrack, bool) {
	if len(f.stack) == 0 {
		return Backtrack{}, false
	}
	b := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return b, true
}

// ClearReturn drops every recorded reversal move.
func (f *Frontier) ClearReturn() {
	f.stack = f.stack[:0]
}

// StackDepth returns the number of recorded reversal moves.
func (f *Frontier) StackDepth() int {
	return len(f.stack)
}

// ReturnCost is the summed cost of the return stack.
func (f *Frontier) ReturnCost() float64 {
	var total float64
	for _, b := range f.stack {
		total += b.Cost
	}
	return total
}
