// Package session keeps the trial records produced during one operator
// session. Records accumulate across actions and are cleared only by Reset.
package session

import (
	"sync"

	"github.com/specialistvlad/manetbench/internal/protocol"
	"github.com/specialistvlad/manetbench/internal/trial"
)

// Store is an in-memory, thread-safe record store keyed by protocol.
type Store struct {
	mu      sync.RWMutex
	records map[protocol.Protocol][]trial.Record
	order   []protocol.Protocol
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[protocol.Protocol][]trial.Record)}
}

// Append adds a record under its protocol.
func (s *Store) Append(rec trial.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.records[rec.Protocol]; !seen {
		s.order = append(s.order, rec.Protocol)
	}
	s.records[rec.Protocol] = append(s.records[rec.Protocol], rec)
}

// Records returns a copy of the records for p in insertion order.
func (s *Store) Records(p protocol.Protocol) []trial.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[p]
	out := make([]trial.Record, len(recs))
	copy(out, recs)
	return out
}

// Samples returns the delivery ratios recorded for p, failed trials included
// as zero.
func (s *Store) Samples(p protocol.Protocol) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[p]
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r.Metrics.DeliveryRatio
	}
	return out
}

// Protocols lists the protocols with at least one record, in the order they
// were first seen.
func (s *Store) Protocols() []protocol.Protocol {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]protocol.Protocol, len(s.order))
	copy(out, s.order)
	return out
}

// Len is the total number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, recs := range s.records {
		n += len(recs)
	}
	return n
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[protocol.Protocol][]trial.Record)
	s.order = nil
}
