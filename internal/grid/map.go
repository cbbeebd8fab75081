package grid

// Map is one agent's knowledge of the world: the cells it has stood on and
// the cells it has found (or decided) to be impassable.
//
// Entries are only ever added. A position recorded as an obstacle is never
// later marked visited and vice versa, so a Map never contradicts itself.
// A Map is agent-local; other agents only ever see copies.
type Map struct {
	visited   map[Position]struct{}
	obstacles map[Position]CellStatus
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{
		visited:   make(map[Position]struct{}),
		obstacles: make(map[Position]CellStatus),
	}
}

// MarkVisited records that the agent stood on pos. Obstacles cannot be visited.
func (m *Map) MarkVisited(pos Position) bool {
	if _, blocked := m.obstacles[pos]; blocked {
		return false
	}
	m.visited[pos] = struct{}{}
	return true
}

// RecordObstacle stores status for pos unless pos is already known.
// Clear statuses are ignored. Returns true if a new entry was written.
func (m *Map) RecordObstacle(pos Position, status CellStatus) bool {
	if !status.Blocking() {
		return false
	}
	if _, known := m.obstacles[pos]; known {
		return false
	}
	if _, seen := m.visited[pos]; seen {
		return false
	}
	m.obstacles[pos] = status
	return true
}

// IsObstacle reports whether pos is known to be impassable.
func (m *Map) IsObstacle(pos Position) bool {
	_, ok := m.obstacles[pos]
	return ok
}

// IsVisited reports whether the agent has stood on pos.
func (m *Map) IsVisited(pos Position) bool {
	_, ok := m.visited[pos]
	return ok
}

// Status returns the recorded obstacle status, or Clear when none is known.
func (m *Map) Status(pos Position) CellStatus {
	if s, ok := m.obstacles[pos]; ok {
		return s
	}
	return Clear
}

// VisitedCount returns the number of distinct visited cells.
func (m *Map) VisitedCount() int {
	return len(m.visited)
}

// ObstacleCount returns the number of recorded obstacles.
func (m *Map) ObstacleCount() int {
	return len(m.obstacles)
}

// Obstacles returns a copy of the obstacle map.
func (m *Map) Obstacles() map[Position]CellStatus {
	out := make(map[Position]CellStatus, len(m.obstacles))
	for p, s := range m.obstacles {
		out[p] = s
	}
	return out
}
