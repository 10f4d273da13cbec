// Package metrics owns the current project snapshot and the scrape
// statistics. The scrape loop is the single writer; request handlers are
// concurrent readers.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/domain"
)

// Store holds the latest snapshot behind an atomic pointer swap. Readers
// never observe a partially-updated snapshot and never block the writer.
type Store struct {
	snapshot atomic.Pointer[domain.ProjectSnapshot]

	mu    sync.Mutex
	stats domain.ScrapeStats
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the current snapshot, or nil before the first successful
// scrape. The returned snapshot is immutable and must not be modified.
func (s *Store) Get() *domain.ProjectSnapshot {
	return s.snapshot.Load()
}

// Update atomically replaces the current snapshot.
func (s *Store) Update(snap *domain.ProjectSnapshot) {
	s.snapshot.Store(snap)
}

// RecordAttempt counts a scrape attempt, successful or not.
func (s *Store) RecordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalScrapes++
}

// RecordFailure counts a failed scrape and retains the error message. The
// previous snapshot stays current.
func (s *Store) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailedScrapes++
	s.stats.LastError = err.Error()
}

// RecordSuccess stamps the last successful scrape and clears the last error.
func (s *Store) RecordSuccess(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := at
	s.stats.LastSuccess = &ts
	s.stats.LastError = ""
}

// Stats returns a copy of the scrape counters.
func (s *Store) Stats() domain.ScrapeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	if s.stats.LastSuccess != nil {
		ts := *s.stats.LastSuccess
		stats.LastSuccess = &ts
	}
	return stats
}
