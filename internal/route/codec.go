// Package route codes borrower-supplied swap routes to and from the flat
// wire format: one 97-byte record per hop, {1-byte venue id, 32-byte
// token-in, 32-byte token-out, 32-byte pool id}, repeated N>=1 times.
package route

import (
	"fmt"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// HopSize is the wire size of one hop record: venue id plus three 32-byte
// identifiers.
const HopSize = 1 + 32 + 32 + 32

// Decode parses raw into an ordered hop list. It fails with
// ErrInvalidDexRoute on empty input, a length that is not a positive
// multiple of HopSize, or a zero-valued embedded identifier. Hop-to-hop
// chain linkage is not checked here; executors that require a linked route
// call ValidateChain.
func Decode(raw []byte) (domain.DexRoute, error) {
	if len(raw) == 0 || len(raw)%HopSize != 0 {
		return domain.DexRoute{}, fmt.Errorf("route: length %d: %w", len(raw), domain.ErrInvalidDexRoute)
	}

	hops := make([]domain.DexHop, 0, len(raw)/HopSize)
	for i := 0; i < len(raw); i += HopSize {
		rec := raw[i : i+HopSize]
		hop := domain.DexHop{
			Venue:    rec[0],
			TokenIn:  domain.ID(rec[1:33]),
			TokenOut: domain.ID(rec[33:65]),
			Pool:     domain.ID(rec[65:97]),
		}
		if hop.TokenIn == (domain.ID{}) || hop.TokenOut == (domain.ID{}) || hop.Pool == (domain.ID{}) {
			return domain.DexRoute{}, fmt.Errorf("route: hop %d has a zero identifier: %w", i/HopSize, domain.ErrInvalidDexRoute)
		}
		hops = append(hops, hop)
	}
	return domain.DexRoute{Hops: hops}, nil
}

// Encode renders a route back to the wire format. Encode(Decode(x)) == x for
// any well-formed x.
func Encode(r domain.DexRoute) []byte {
	out := make([]byte, 0, len(r.Hops)*HopSize)
	for _, hop := range r.Hops {
		out = append(out, hop.Venue)
		out = append(out, hop.TokenIn[:]...)
		out = append(out, hop.TokenOut[:]...)
		out = append(out, hop.Pool[:]...)
	}
	return out
}

// ValidateChain verifies that every hop's token-out feeds the next hop's
// token-in. Single-hop routes are trivially linked.
func ValidateChain(r domain.DexRoute) error {
	for i := 1; i < len(r.Hops); i++ {
		if r.Hops[i-1].TokenOut != r.Hops[i].TokenIn {
			return fmt.Errorf("route: hop %d is not linked to hop %d: %w", i, i-1, domain.ErrInvalidDexRoute)
		}
	}
	return nil
}
