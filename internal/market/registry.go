package market

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"clob/internal/common"
)

// MarketID identifies one Market within a Registry. Spec.md scopes a single
// Market; the teacher's own Engine hosts several books side by side
// (Engine.Books map[AssetType]OrderBook) — Registry generalizes that to
// several independently-initialized Markets, matched and settled
// independently. No cross-market matching ever happens (a spec Non-goal);
// Registry only dispatches by id to the right Market.
type MarketID struct {
	Base, Quote uuid.UUID
}

func (id MarketID) less(other MarketID) bool {
	if id.Base != other.Base {
		return id.Base.String() < other.Base.String()
	}
	return id.Quote.String() < other.Quote.String()
}

type entry struct {
	id     MarketID
	market *Market
}

// Registry hosts multiple markets, indexed by MarketID, with deterministic
// ordered iteration via a tidwall/btree index (a plain map's iteration order
// is undefined, which a ListMarkets diagnostic needs to avoid).
type Registry struct {
	mu      sync.Mutex
	entries *btree.BTreeG[entry]
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: btree.NewBTreeG(func(a, b entry) bool { return a.id.less(b.id) }),
	}
}

// Get returns the market for id, if one has been registered.
func (r *Registry) Get(id MarketID) (*Market, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries.Get(entry{id: id})
	if !ok {
		return nil, false
	}
	return e.market, true
}

// Add registers an already-initialized market under id. Fails with
// ErrInvalidParameter if id is already registered.
func (r *Registry) Add(id MarketID, m *Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries.Get(entry{id: id}); ok {
		return common.ErrInvalidParameter
	}
	r.entries.Set(entry{id: id, market: m})
	return nil
}

// List returns every registered market id in ascending MarketID order.
func (r *Registry) List() []MarketID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MarketID, 0, r.entries.Len())
	r.entries.Scan(func(e entry) bool {
		out = append(out, e.id)
		return true
	})
	return out
}
