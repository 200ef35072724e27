package nogood

import (
	"container/list"
	"sync"

	"github.com/dlvgo/hexcore/idstore"
)

// Template is a nonground nogood: literals may reference nonground atom ids
// (variables). NogoodGrounder instantiates templates against a live
// assignment.
type Template struct {
	Literals []idstore.Id
	// Generalized records, for each literal index, whether that literal's
	// input constants were lifted to fresh variables because the oracle
	// declared the corresponding predicate position name-irrelevant
	// (spec.md §4.7 "Generalisation").
	Generalized []bool
}

// entry is the bookkeeping record for one stored ground nogood: the nogood
// itself plus an access counter used by the forget-least-frequently-used
// eviction policy.
type entry struct {
	ng   *Nogood
	hits int
	elem *list.Element // position in the recency-ordered order list
}

// Store is the NogoodStore of spec.md §3/§4: a deduplicated set of ground
// nogoods, a set of nonground templates, and an LFU-forgetting policy that
// activates once the stored count exceeds a configured memory budget.
type Store struct {
	mu sync.Mutex

	byKey map[string]*entry
	order *list.List // entries ordered from least- to most-recently-touched

	templates []*Template

	// Budget bounds the number of ground nogoods retained; 0 means
	// unbounded. When exceeded, AddGround evicts the least-frequently-used
	// entry (ties broken by least recently touched).
	Budget int

	// evicted counts nogoods dropped by the budget policy, for diagnostics.
	evicted int
}

// NewStore returns an empty NogoodStore with no memory budget.
func NewStore() *Store {
	return &Store{byKey: make(map[string]*entry), order: list.New()}
}

// AddGround inserts a ground nogood, deduplicating by content. Returns
// whether the nogood was newly added (false if it already existed).
func (s *Store) AddGround(ng *Nogood) bool {
	key := ng.Key()
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byKey[key]; ok {
		s.touch(e)
		return false
	}

	e := &entry{ng: ng}
	e.elem = s.order.PushBack(e)
	s.byKey[key] = e

	if s.Budget > 0 && len(s.byKey) > s.Budget {
		s.evictLocked()
	}
	return true
}

func (s *Store) touch(e *entry) {
	e.hits++
	s.order.MoveToBack(e.elem)
}

// evictLocked drops the entry with the fewest hits; among entries with equal
// hits, the one nearest the front of the order list (the least recently
// touched) goes first.
func (s *Store) evictLocked() {
	var victim *list.Element
	for el := s.order.Front(); el != nil; el = el.Next() {
		if victim == nil || el.Value.(*entry).hits < victim.Value.(*entry).hits {
			victim = el
		}
	}
	if victim == nil {
		return
	}
	e := victim.Value.(*entry)
	s.order.Remove(victim)
	delete(s.byKey, e.ng.Key())
	s.evicted++
}

// Evicted returns how many nogoods have been dropped by the budget policy.
func (s *Store) Evicted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Contains reports whether a content-equal ground nogood is already stored.
func (s *Store) Contains(ng *Nogood) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[ng.Key()]
	return ok
}

// All returns a snapshot of every stored ground nogood.
func (s *Store) All() []*Nogood {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Nogood, 0, len(s.byKey))
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*entry).ng)
	}
	return out
}

// Len returns the number of stored ground nogoods.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// AddTemplate registers a nonground nogood template for later grounding.
func (s *Store) AddTemplate(t *Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, t)
}

// Templates returns a snapshot of the registered templates.
func (s *Store) Templates() []*Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Template(nil), s.templates...)
}
