package download

import "sync"

// tileBudget counts stored Mapbox tiles against the process-wide limit.
// Fetches reserve a slot before they are issued and commit it once the tile
// is stored, so concurrent workers cannot overshoot the limit.
type tileBudget struct {
	mu       sync.Mutex
	limit    uint64
	used     uint64
	reserved uint64
}

func newTileBudget(limit uint64) *tileBudget {
	return &tileBudget{limit: limit}
}

// tryReserve takes a slot for one tile. It returns the limit it was checked
// against.
func (b *tileBudget) tryReserve() (bool, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used+b.reserved >= b.limit {
		return false, b.limit
	}
	b.reserved++
	return true, b.limit
}

func (b *tileBudget) commit() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reserved--
	b.used++
	return b.used
}

func (b *tileBudget) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved--
}

// reduce subtracts evicted tiles.
func (b *tileBudget) reduce(n uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.used {
		n = b.used
	}
	b.used -= n
	return b.used
}

func (b *tileBudget) setUsed(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = n
}

func (b *tileBudget) setLimit(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limit = n
}

// snapshot returns the limit and the number of stored tiles.
func (b *tileBudget) snapshot() (limit, used uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit, b.used
}
