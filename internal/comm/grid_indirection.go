package comm

import (
	"math"

	"github.com/dreamware/kaspan/internal/ids"
)

// GridIndirection relays point-to-point sends through one intermediary
// chosen by arranging ranks into a
// ceil(sqrt(P))-by-ceil(sqrt(P)) grid, bounding any single rank's direct
// fan-out to roughly sqrt(P) instead of P. The relay rank sits at the
// intersection of the sender's row and the destination's column;
// handleDeliver's existing "env.To != f.rank" forward branch does the
// second hop, so this type only needs to pick the first one.
type GridIndirection struct{}

func (GridIndirection) Route(from, to ids.Rank, addrs []string) string {
	p := len(addrs)
	side := gridSide(p)
	relay := (from/side)*side + (to % side)
	if relay < 0 || relay >= p || relay == from || relay == to {
		return addrs[to]
	}
	return addrs[relay]
}

// gridSide returns ceil(sqrt(p)), the width of the square grid p ranks
// are arranged into (the last row may be partial).
func gridSide(p int) int {
	side := int(math.Ceil(math.Sqrt(float64(p))))
	if side < 1 {
		side = 1
	}
	return side
}
