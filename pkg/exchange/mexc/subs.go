package mexc

import (
	"sort"
	"sync"
)

// symbolSet is an insertion-ordered set of subscribed symbols. Poll cycles
// iterate symbols in subscription order, which keeps per-tick callback
// ordering deterministic.
type symbolSet struct {
	mu     sync.Mutex
	order  []string
	member map[string]struct{}
}

func newSymbolSet() *symbolSet {
	return &symbolSet{member: make(map[string]struct{})}
}

func (s *symbolSet) Add(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.member[symbol]; ok {
		return
	}
	s.member[symbol] = struct{}{}
	s.order = append(s.order, symbol)
}

func (s *symbolSet) Contains(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.member[symbol]
	return ok
}

// List returns the symbols in subscription order.
func (s *symbolSet) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *symbolSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *symbolSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.member = make(map[string]struct{})
}

// callbackRegistry is an observer registry. Registration hands back an
// unsubscribe closure instead of requiring manual bookkeeping by the
// caller; dispatch order follows registration order.
type callbackRegistry[T any] struct {
	mu   sync.Mutex
	next int64
	fns  map[int64]func(T)
}

func newCallbackRegistry[T any]() *callbackRegistry[T] {
	return &callbackRegistry[T]{fns: make(map[int64]func(T))}
}

// Add registers a callback and returns its unsubscribe handle.
func (r *callbackRegistry[T]) Add(fn func(T)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.fns[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.fns, id)
	}
}

// Dispatch invokes every registered callback with the event, in
// registration order.
func (r *callbackRegistry[T]) Dispatch(event T) {
	for _, fn := range r.snapshot() {
		fn(event)
	}
}

func (r *callbackRegistry[T]) snapshot() []func(T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.fns))
	for id := range r.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, r.fns[id])
	}
	return out
}

func (r *callbackRegistry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

func (r *callbackRegistry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = make(map[int64]func(T))
}
