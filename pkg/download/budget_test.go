package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTileBudget(t *testing.T) {
	b := newTileBudget(2)

	ok, limit := b.tryReserve()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), limit)
	ok, _ = b.tryReserve()
	assert.True(t, ok)

	// Reservations count toward the limit before they are committed.
	ok, _ = b.tryReserve()
	assert.False(t, ok)

	b.release()
	assert.Equal(t, uint64(1), b.commit())
	ok, _ = b.tryReserve()
	assert.True(t, ok)
	b.commit()

	_, used := b.snapshot()
	assert.Equal(t, uint64(2), used)

	b.setLimit(3)
	ok, limit = b.tryReserve()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), limit)
	b.release()

	assert.Equal(t, uint64(1), b.reduce(1))
	assert.Equal(t, uint64(0), b.reduce(5))
}
