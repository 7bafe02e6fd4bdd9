package venue

import "context"

// Router dispatches operations to the adapter registered for a given
// venue identity. It is built once at startup from whichever venues
// have credentials configured and is never mutated afterward, so
// reads need no locking.
type Router struct {
	adapters map[ID]Adapter
}

// NewRouter builds a router over the given adapters, keyed by their
// own ID(). A venue with missing credentials is simply omitted by the
// caller rather than registered with a broken adapter.
func NewRouter(adapters ...Adapter) *Router {
	r := &Router{adapters: make(map[ID]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

func (r *Router) Get(id ID) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, ErrUnknownVenue
	}
	return a, nil
}

func (r *Router) Has(id ID) bool {
	_, ok := r.adapters[id]
	return ok
}

// Registered returns the venue IDs with a live adapter, in a stable
// order so callers (status endpoints, startup logs) get deterministic
// output.
func (r *Router) Registered() []ID {
	out := make([]ID, 0, len(r.adapters))
	for _, id := range []ID{M, G, B} {
		if _, ok := r.adapters[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// FetchQuote fetches ticker and order book together for one venue and
// symbol, returning the combined Quote the monitor and sizing
// calculator operate on.
func (r *Router) FetchQuote(ctx context.Context, id ID, symbol Symbol, depth int) (Quote, error) {
	a, err := r.Get(id)
	if err != nil {
		return Quote{}, err
	}

	ticker, err := a.FetchTicker(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	book, err := a.FetchOrderBook(ctx, symbol, depth)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Venue:     id,
		Symbol:    symbol,
		OrderBook: book,
		Ticker:    ticker,
		FetchedAt: ticker.TS,
	}, nil
}
