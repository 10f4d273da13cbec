package domain

import "time"

// ServiceUsage holds one service's cumulative counters for the current
// billing period. Counters are clamped to zero at normalization time, so
// consumers may assume they are non-negative.
type ServiceUsage struct {
	ID      string
	Name    string
	Icon    string
	Group   string
	Deleted bool

	CPUVCPUMinutes  float64
	MemoryGBMinutes float64
	DiskGBMinutes   float64
	NetworkTxGB     float64
	NetworkRxGB     float64
}

// ProjectSnapshot is an immutable aggregate produced by one successful
// scrape. Services keep their discovery order: a service keeps its position
// across scrapes, new services append at the end.
type ProjectSnapshot struct {
	ProjectName   string
	Services      []ServiceUsage
	DaysElapsed   int
	DaysRemaining int
	ScrapedAt     time.Time
	Duration      time.Duration
}

// ElapsedMinutes returns the minutes elapsed in the billing period.
func (s *ProjectSnapshot) ElapsedMinutes() float64 {
	return float64(s.DaysElapsed) * 24 * 60
}

// ScrapeStats tracks scrape loop counters. Updated monotonically, never
// reset until process restart.
type ScrapeStats struct {
	TotalScrapes  uint64
	FailedScrapes uint64
	LastSuccess   *time.Time
	LastError     string
}
