package ingest

import (
	"sync"

	"market-relay/internal/model"
)

// Subscriptions is the set of streams replayed on every (re)connect.
// Iteration follows insertion order.
type Subscriptions struct {
	mu    sync.RWMutex
	order []model.Subscription
	index map[model.Subscription]struct{}
}

func NewSubscriptions(initial ...model.Subscription) *Subscriptions {
	s := &Subscriptions{
		index: make(map[model.Subscription]struct{}, len(initial)),
	}
	for _, sub := range initial {
		s.Add(sub)
	}
	return s
}

// Add inserts sub and reports whether it was new.
func (s *Subscriptions) Add(sub model.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[sub]; ok {
		return false
	}
	s.index[sub] = struct{}{}
	s.order = append(s.order, sub)
	return true
}

// Remove deletes sub and reports whether it was present.
func (s *Subscriptions) Remove(sub model.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[sub]; !ok {
		return false
	}
	delete(s.index, sub)
	for i := range s.order {
		if s.order[i] == sub {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Subscriptions) Contains(sub model.Subscription) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[sub]
	return ok
}

// List returns a copy of the set.
func (s *Subscriptions) List() []model.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Subscription, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
