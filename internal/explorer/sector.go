package explorer

import (
	"fmt"

	"github.com/dyluth/sortie/internal/grid"
)

// Sector is the region an explorer is allowed to cover. Cells outside it are
// fenced off as obstacles the first time they are sensed so the explorer
// never wanders into a peer's region.
type Sector interface {
	Contains(p grid.Position) bool
}

// SectorFunc adapts a pure predicate into a Sector.
type SectorFunc func(p grid.Position) bool

// Contains calls f(p).
func (f SectorFunc) Contains(p grid.Position) bool {
	return f(p)
}

// Everywhere is the unrestricted sector.
var Everywhere Sector = SectorFunc(func(grid.Position) bool { return true })

// Side names a half-plane relative to home.
type Side string

const (
	SideNorth Side = "north"
	SideSouth Side = "south"
	SideEast  Side = "east"
	SideWest  Side = "west"
)

// HalfPlane returns the closed half-plane on one side of home.
// North means y <= home.Y since y grows southwards.
func HalfPlane(home grid.Position, side Side) (Sector, error) {
	switch side {
	case SideNorth:
		return SectorFunc(func(p grid.Position) bool { return p.Y <= home.Y }), nil
	case SideSouth:
		return SectorFunc(func(p grid.Position) bool { return p.Y >= home.Y }), nil
	case SideEast:
		return SectorFunc(func(p grid.Position) bool { return p.X >= home.X }), nil
	case SideWest:
		return SectorFunc(func(p grid.Position) bool { return p.X <= home.X }), nil
	default:
		return nil, fmt.Errorf("unknown half-plane side %q", side)
	}
}

// Quadrant returns the closed quadrant formed by two sides, e.g. south + east.
func Quadrant(home grid.Position, vertical, horizontal Side) (Sector, error) {
	if vertical != SideNorth && vertical != SideSouth {
		return nil, fmt.Errorf("quadrant needs north or south, got %q", vertical)
	}
	if horizontal != SideEast && horizontal != SideWest {
		return nil, fmt.Errorf("quadrant needs east or west, got %q", horizontal)
	}

	v, _ := HalfPlane(home, vertical)
	h, _ := HalfPlane(home, horizontal)
	return SectorFunc(func(p grid.Position) bool {
		return v.Contains(p) && h.Contains(p)
	}), nil
}
