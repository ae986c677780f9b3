package mexc

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedSetDeduplicates(t *testing.T) {
	set := newBoundedSet(10)
	assert.False(t, set.Seen("a"))
	assert.True(t, set.Seen("a"))
	assert.False(t, set.Seen("b"))
	assert.Equal(t, 2, set.Len())
}

func TestBoundedSetEvictsOldestAtCap(t *testing.T) {
	set := newBoundedSet(3)
	for i := 0; i < 4; i++ {
		assert.False(t, set.Seen(strconv.Itoa(i)))
	}
	assert.Equal(t, 3, set.Len())
	// "0" was evicted and now counts as new again.
	assert.False(t, set.Seen("0"))
	// "3" is still present.
	assert.True(t, set.Seen("3"))
}

func TestBoundedSetClear(t *testing.T) {
	set := newBoundedSet(5)
	set.Seen("a")
	set.Clear()
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Seen("a"))
}

func TestFillKeyDistinguishesCollidingTradeIDs(t *testing.T) {
	a := fillKey("1", "100", 1700000000000)
	b := fillKey("1", "200", 1700000000000)
	c := fillKey("1", "100", 1700000000001)
	assert.NotEqual(t, a, b, "same trade id on a different order is a different fill")
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, fillKey("1", "100", 1700000000000))
}

func TestBoundedIndexPutGetAndEviction(t *testing.T) {
	idx := newBoundedIndex(3)
	for i := 0; i < 4; i++ {
		idx.Put(strconv.Itoa(i), "sym")
	}
	assert.Equal(t, 3, idx.Len())
	_, ok := idx.Get("0")
	assert.False(t, ok, "oldest entry evicted")
	value, ok := idx.Get("3")
	assert.True(t, ok)
	assert.Equal(t, "sym", value)
}

func TestBoundedIndexOverwriteKeepsSingleSlot(t *testing.T) {
	idx := newBoundedIndex(3)
	idx.Put("a", "one")
	idx.Put("a", "two")
	assert.Equal(t, 1, idx.Len())
	value, _ := idx.Get("a")
	assert.Equal(t, "two", value)
}
