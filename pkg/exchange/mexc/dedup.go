package mexc

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// boundedSet is a capped string set with FIFO eviction: once the cap is
// exceeded, the oldest inserted key is dropped. This approximates LRU and
// can, under rare reordering, evict a still-relevant key; a known
// limitation.
type boundedSet struct {
	mu    sync.Mutex
	cap   int
	seen  map[string]struct{}
	order []string
}

func newBoundedSet(cap int) *boundedSet {
	if cap <= 0 {
		cap = 500
	}
	return &boundedSet{cap: cap, seen: make(map[string]struct{}, cap)}
}

// Seen reports whether the key was already recorded and records it if not.
func (s *boundedSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
	if len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return false
}

func (s *boundedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *boundedSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{}, s.cap)
	s.order = nil
}

// fillKey builds the de-duplication key for one fill: the trade id plus a
// digest over the identifying fields, so a venue reusing trade ids across
// orders still de-duplicates correctly.
func fillKey(tradeID, orderID string, timestamp int64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", tradeID, orderID, timestamp)
	return fmt.Sprintf("%s:%x", tradeID, h.Sum64())
}

// boundedIndex is a capped string→string map with the same FIFO eviction
// policy, used for the order→symbol index. Entries are never explicitly
// deleted; eviction only protects against unbounded growth over a long
// process lifetime.
type boundedIndex struct {
	mu    sync.Mutex
	cap   int
	items map[string]string
	order []string
}

func newBoundedIndex(cap int) *boundedIndex {
	if cap <= 0 {
		cap = 4096
	}
	return &boundedIndex{cap: cap, items: make(map[string]string, cap)}
}

func (i *boundedIndex) Put(key, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.items[key]; !ok {
		i.order = append(i.order, key)
		if len(i.order) > i.cap {
			oldest := i.order[0]
			i.order = i.order[1:]
			delete(i.items, oldest)
		}
	}
	i.items[key] = value
}

func (i *boundedIndex) Get(key string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	value, ok := i.items[key]
	return value, ok
}

func (i *boundedIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}

func (i *boundedIndex) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = make(map[string]string, i.cap)
	i.order = nil
}
