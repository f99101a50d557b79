package rules

import (
	"sync"

	"github.com/jmurray2011/spindle/internal/record"
)

// Ruler is what a RuleSet holds: one of the rule kinds, by pointer.
type Ruler interface {
	comparable
	Name() string
	Enabled() bool
	IsMatch(rec *record.Record) bool
}

// RuleSet is an ordered list of rules. Order is significant: engines walk
// it front to back. Reordering only swaps neighbours.
type RuleSet[T Ruler] struct {
	mu    sync.RWMutex
	rules []T
}

// NewRuleSet returns a set holding rules in the given order.
func NewRuleSet[T Ruler](rules ...T) *RuleSet[T] {
	return &RuleSet[T]{rules: append([]T(nil), rules...)}
}

// Add appends rule at the end.
func (s *RuleSet[T]) Add(rule T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
}

// Remove deletes rule, reporting whether it was present.
func (s *RuleSet[T]) Remove(rule T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(rule)
	if i < 0 {
		return false
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return true
}

// MoveEarlier swaps rule with the one before it. It reports false when the
// rule is first or absent.
func (s *RuleSet[T]) MoveEarlier(rule T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(rule)
	if i <= 0 {
		return false
	}
	s.rules[i-1], s.rules[i] = s.rules[i], s.rules[i-1]
	return true
}

// MoveLater swaps rule with the one after it.
func (s *RuleSet[T]) MoveLater(rule T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(rule)
	if i < 0 || i == len(s.rules)-1 {
		return false
	}
	s.rules[i], s.rules[i+1] = s.rules[i+1], s.rules[i]
	return true
}

func (s *RuleSet[T]) index(rule T) int {
	for i, r := range s.rules {
		if r == rule {
			return i
		}
	}
	return -1
}

// Len returns the number of rules.
func (s *RuleSet[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Each calls fn for every rule in order while holding the read lock, so a
// concurrent reorder waits for the walk to finish. Returning false stops.
// fn must not modify the set.
func (s *RuleSet[T]) Each(fn func(T) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if !fn(r) {
			return
		}
	}
}

// Snapshot returns a copy of the current order.
func (s *RuleSet[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.rules...)
}
