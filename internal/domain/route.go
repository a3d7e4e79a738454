package domain

// DexHop is one leg of a multi-step swap route: which venue to trade on, the
// token pair, and the venue-local pool to trade against.
type DexHop struct {
	Venue    uint8
	TokenIn  ID
	TokenOut ID
	Pool     ID
}

// DexRoute is a borrower-supplied ordered hop list, decoded from the wire
// format by the route codec. It is transient and never persisted.
type DexRoute struct {
	Hops []DexHop
}

// First returns the first hop. Callers must have checked the route is
// non-empty (the codec rejects empty routes).
func (r DexRoute) First() DexHop { return r.Hops[0] }

// Last returns the final hop.
func (r DexRoute) Last() DexHop { return r.Hops[len(r.Hops)-1] }
