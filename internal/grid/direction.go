package grid

import "fmt"

// Direction is one of the eight relative moves, numbered clockwise from north.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// NumDirections is the size of a neighbourhood scan.
const NumDirections = 8

var deltas = [NumDirections][2]int{
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
	{-1, -1}, // NW
}

var directionNames = [NumDirections]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Directions lists all bearings in scan order.
func Directions() []Direction {
	return []Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}
}

// Delta returns the (dx, dy) increment of the direction.
func (d Direction) Delta() (int, int) {
	v := deltas[d]
	return v[0], v[1]
}

// Opposite returns the reverse bearing.
func (d Direction) Opposite() Direction {
	return (d + 4) % NumDirections
}

// Diagonal reports whether the move changes both coordinates.
func (d Direction) Diagonal() bool {
	return d%2 == 1
}

// Cost returns the step cost of the move.
func (d Direction) Cost() float64 {
	if d.Diagonal() {
		return DiagCost
	}
	return LineCost
}

// Valid reports whether d is one of the eight bearings.
func (d Direction) Valid() bool {
	return d >= North && d <= NorthWest
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// DirectionOf returns the bearing matching a unit (dx, dy) step.
func DirectionOf(dx, dy int) (Direction, bool) {
	for i, v := range deltas {
		if v[0] == dx && v[1] == dy {
			return Direction(i), true
		}
	}
	return 0, false
}

// Between returns the bearing that moves from a to the adjacent cell b.
func Between(a, b Position) (Direction, bool) {
	return DirectionOf(b.X-a.X, b.Y-a.Y)
}
