package stepservo

// Direction is the sense of travel for a move.
type Direction int

const (
	// Forward moves toward larger pulse widths.
	Forward Direction = iota
	// Backward moves toward smaller pulse widths.
	Backward
)

// Sign returns +1 for Forward and -1 for Backward.
func (d Direction) Sign() int {
	if d == Backward {
		return -1
	}
	return 1
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// directionTo picks the direction from current to target. A zero length move counts as Forward.
func directionTo(current, target int) Direction {
	if target >= current {
		return Forward
	}
	return Backward
}
