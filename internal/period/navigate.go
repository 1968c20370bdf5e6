package period

import "github.com/solatis/datex/internal/types"

// Direction of an explicit period step.
type Direction string

const (
	Prior Direction = "prior"
	Next  Direction = "next"
)

// Boundary reports a navigation attempt past either end of the index.
type Boundary string

const (
	BoundaryNone   Boundary = ""
	BoundaryOldest Boundary = "oldest"
	BoundaryNewest Boundary = "newest"
)

// Navigate steps from current to the adjacent period in dir.
// Stepping past either end is a no-op that returns current and the
// boundary reached. When current is not indexed the nearest key strictly
// before or after it is chosen. Unknown directions leave current unchanged.
func Navigate(ix Index, current types.PeriodKey, dir Direction) (types.PeriodKey, Boundary) {
	switch dir {
	case Prior:
		if current.None() {
			return current, BoundaryOldest
		}
		if k, ok := ix.Before(current); ok {
			return k, BoundaryNone
		}
		return current, BoundaryOldest
	case Next:
		if current.None() {
			return current, BoundaryNewest
		}
		if k, ok := ix.After(current); ok {
			return k, BoundaryNone
		}
		return current, BoundaryNewest
	default:
		return current, BoundaryNone
	}
}

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case Prior, Next:
		return d, true
	default:
		return "", false
	}
}
