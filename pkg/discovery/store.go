package discovery

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Ticket authorizes one probe result to be applied to the Store.
type Ticket struct {
	path string
	seq  uint64
}

// Path returns the repository the ticket was claimed for.
func (t Ticket) Path() string {
	return t.path
}

// Store holds the latest record per repository path. It is safe for
// concurrent use; readers always see whole records.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	claims  map[string]uint64
	seq     uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]Record),
		claims:  make(map[string]uint64),
	}
}

// Register inserts an unresolved placeholder for path unless a record
// already exists. It reports whether a placeholder was inserted.
func (s *Store) Register(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[path]; ok {
		return false
	}
	s.records[path] = Record{Path: path, DisplayName: filepath.Base(path)}
	return true
}

// Upsert replaces the record stored under rec.Path.
func (s *Store) Upsert(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Path] = rec
}

// Claim starts a probe for path. Only the result of the most recent claim
// may be applied; earlier tickets become stale.
func (s *Store) Claim(path string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.claims[path] = s.seq
	return Ticket{path: path, seq: s.seq}
}

// Apply stores rec under the ticket's path if the ticket is still the
// latest claim. It reports whether the record was stored.
func (s *Store) Apply(t Ticket, rec Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claims[t.path] != t.seq {
		return false
	}
	delete(s.claims, t.path)

	rec.Path = t.path
	s.records[t.path] = rec
	return true
}

// Remove drops the record for path and invalidates in-flight probes for it.
func (s *Store) Remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[path]; ok {
		s.seq++
		s.claims[path] = s.seq
	}

	if _, ok := s.records[path]; !ok {
		return false
	}
	delete(s.records, path)
	return true
}

// Get returns the record for path.
func (s *Store) Get(path string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[path]
	return rec, ok
}

// Len returns the number of tracked repositories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Snapshot returns a copy of every record ordered by path.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	records := lo.Values(s.records)
	s.mu.RUnlock()

	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(a.Path, b.Path)
	})
	return records
}

// Filter returns the records whose display name or path contains query,
// ignoring case. An empty query matches everything.
func (s *Store) Filter(query string) []Record {
	return FilterRecords(s.Snapshot(), query)
}

// Counts returns the number of records per status.
func (s *Store) Counts() map[Status]int {
	return CountByStatus(s.Snapshot())
}

// FilterRecords applies the Store's filter semantics to records.
func FilterRecords(records []Record, query string) []Record {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}
	return lo.Filter(records, func(r Record, _ int) bool {
		return strings.Contains(strings.ToLower(r.DisplayName), query) ||
			strings.Contains(strings.ToLower(r.Path), query)
	})
}

// CountByStatus tallies records per status, including zero entries for
// every status.
func CountByStatus(records []Record) map[Status]int {
	counts := lo.SliceToMap(Statuses, func(s Status) (Status, int) {
		return s, 0
	})
	for status, n := range lo.CountValuesBy(records, Record.Status) {
		counts[status] = n
	}
	return counts
}
