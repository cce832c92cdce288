package testfixtures

import (
	"strconv"
	"sync"
)

// Sequence hands out readable identifiers such as "booking-1" and
// "catalog-3", counting each kind independently.
type Sequence struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewSequence returns an empty sequence.
func NewSequence() *Sequence {
	return &Sequence{counts: map[string]int{}}
}

// Next issues the next identifier of kind.
func (s *Sequence) Next(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[kind]++
	return kind + "-" + strconv.Itoa(s.counts[kind])
}

// For binds kind, giving the func() string that services take as their id
// generator.
func (s *Sequence) For(kind string) func() string {
	return func() string { return s.Next(kind) }
}

// Issued reports how many identifiers of kind were handed out.
func (s *Sequence) Issued(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}
