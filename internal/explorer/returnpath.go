package explorer

import (
	"container/heap"

	"github.com/dyluth/sortie/internal/grid"
)

// defaultSearchLimit caps node expansions when no grid bounds are known.
const defaultSearchLimit = 1 << 16

// ReturnPlanner plans shortest-known paths home with A*. Unknown cells are
// assumed traversable; known obstacles and cells outside the bounds are not.
type ReturnPlanner struct {
	world  *grid.Map
	bounds grid.Bounds
}

// NewReturnPlanner creates a planner over an agent's own map.
func NewReturnPlanner(world *grid.Map, bounds grid.Bounds) *ReturnPlanner {
	return &ReturnPlanner{world: world, bounds: bounds}
}

type openNode struct {
	pos grid.Position
	g   float64
	f   float64
	seq int
}

// openSet orders by f, then by insertion sequence.
type openSet []openNode

func (s openSet) Len() int { return len(s) }
func (s openSet) Less(i, j int) bool {
	if s[i].f != s[j].f {
		return s[i].f < s[j].f
	}
	return s[i].seq < s[j].seq
}
func (s openSet) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s *openSet) Push(x interface{}) { *s = append(*s, x.(openNode)) }
func (s *openSet) Pop() interface{} {
	old := *s
	n := old[len(old)-1]
	*s = old[:len(old)-1]
	return n
}

// Plan returns the move sequence from start to goal, or nil when start equals
// goal or no path exists over the known map.
func (p *ReturnPlanner) Plan(start, goal grid.Position) []grid.Direction {
	if start == goal || p.world.IsObstacle(goal) || !p.bounds.Contains(goal) {
		return nil
	}

	limit := p.bounds.Cells() * grid.NumDirections
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	open := &openSet{}
	seq := 0
	heap.Push(open, openNode{pos: start, g: 0, f: grid.Heuristic(start, goal), seq: seq})

	best := map[grid.Position]float64{start: 0}
	cameFrom := make(map[grid.Position]grid.Position)

	for expanded := 0; open.Len() > 0 && expanded < limit; {
		cur := heap.Pop(open).(openNode)
		if cur.g > best[cur.pos] {
			continue
		}
		if cur.pos == goal {
			return reconstruct(cameFrom, start, goal)
		}
		expanded++

		for _, d := range grid.Directions() {
			next := cur.pos.Add(d)
			if !p.bounds.Contains(next) || p.world.IsObstacle(next) {
				continue
			}
			g := cur.g + d.Cost()
			if old, seen := best[next]; seen && g >= old {
				continue
			}
			best[next] = g
			cameFrom[next] = cur.pos
			seq++
			heap.Push(open, openNode{pos: next, g: g, f: g + grid.Heuristic(next, goal), seq: seq})
		}
	}
	return nil
}

func reconstruct(cameFrom map[grid.Position]grid.Position, start, goal grid.Position) []grid.Direction {
	var rev []grid.Direction
	for cur := goal; cur != start; {
		prev := cameFrom[cur]
		d, _ := grid.Between(prev, cur)
		rev = append(rev, d)
		cur = prev
	}

	path := make([]grid.Direction, len(rev))
	for i, d := range rev {
		path[len(rev)-1-i] = d
	}
	return path
}

// EstimateCost is the budget needed to get from start to goal: the planned
// path length times the diagonal cost, or fallback when there is no path.
func (p *ReturnPlanner) EstimateCost(start, goal grid.Position, fallback float64) float64 {
	if start == goal {
		return 0
	}
	path := p.Plan(start, goal)
	if len(path) == 0 {
		return fallback
	}
	return float64(len(path)) * grid.DiagCost
}
