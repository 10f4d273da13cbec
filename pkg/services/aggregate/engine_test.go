package aggregate

import (
	"testing"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/domain"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
	"github.com/stretchr/testify/assert"
)

var testRates = pricing.Rates{
	CPUPerVCPUMinute:   0.000463,
	MemoryPerGBMinute:  0.000231,
	DiskPerGBMinute:    0.000021,
	NetworkPerGBEgress: 0.10,
}

func snapshotWith(daysElapsed int, services ...domain.ServiceUsage) *domain.ProjectSnapshot {
	return &domain.ProjectSnapshot{
		ProjectName:   "demo",
		Services:      services,
		DaysElapsed:   daysElapsed,
		DaysRemaining: 30 - daysElapsed,
		ScrapedAt:     time.Date(2026, 8, daysElapsed, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeServiceTotalsOrdering(t *testing.T) {
	snap := snapshotWith(10,
		domain.ServiceUsage{ID: "a", Name: "cheap", NetworkTxGB: 0.1},
		domain.ServiceUsage{ID: "b", Name: "expensive", NetworkTxGB: 10},
		domain.ServiceUsage{ID: "c", Name: "medium", NetworkTxGB: 1},
	)

	totals := ComputeServiceTotals(snap, testRates)

	assert.Len(t, totals, 3)
	assert.Equal(t, "expensive", totals[0].Service.Name)
	assert.Equal(t, "medium", totals[1].Service.Name)
	assert.Equal(t, "cheap", totals[2].Service.Name)
}

func TestComputeServiceTotalsStableForEqualCosts(t *testing.T) {
	snap := snapshotWith(10,
		domain.ServiceUsage{ID: "a", Name: "first", NetworkTxGB: 1},
		domain.ServiceUsage{ID: "b", Name: "second", NetworkTxGB: 1},
		domain.ServiceUsage{ID: "c", Name: "third", NetworkTxGB: 1},
	)

	first := ComputeServiceTotals(snap, testRates)
	second := ComputeServiceTotals(snap, testRates)

	for i := range first {
		assert.Equal(t, first[i].Service.ID, second[i].Service.ID)
	}
	assert.Equal(t, "first", first[0].Service.Name)
	assert.Equal(t, "second", first[1].Service.Name)
}

func TestComputeServiceTotalsAverages(t *testing.T) {
	// 10 days elapsed = 14400 minutes
	snap := snapshotWith(10, domain.ServiceUsage{
		ID:              "a",
		Name:            "api",
		CPUVCPUMinutes:  14400,
		MemoryGBMinutes: 28800,
		DiskGBMinutes:   7200,
	})

	totals := ComputeServiceTotals(snap, testRates)

	assert.InDelta(t, 1.0, totals[0].AvgCPUVCPUs, 1e-9)
	assert.InDelta(t, 2.0, totals[0].AvgMemoryGB, 1e-9)
	assert.InDelta(t, 0.5, totals[0].AvgDiskGB, 1e-9)
}

func TestComputeServiceTotalsZeroDaysElapsed(t *testing.T) {
	snap := snapshotWith(0, domain.ServiceUsage{ID: "a", Name: "api", NetworkTxGB: 1})

	totals := ComputeServiceTotals(snap, testRates)

	assert.Zero(t, totals[0].EstimatedMonthlyUSD)
	assert.Zero(t, totals[0].AvgCPUVCPUs)
	assert.InDelta(t, 0.10, totals[0].CostUSD, 1e-9)
}

func TestComputeProjectTotals(t *testing.T) {
	tests := []struct {
		name             string
		services         []domain.ServiceUsage
		daysElapsed      int
		expectedActive   float64
		expectedTotal    float64
		expectedEstimate float64
		expectedDaily    float64
	}{
		{
			name: "active and deleted split",
			services: []domain.ServiceUsage{
				{ID: "a", NetworkTxGB: 10},
				{ID: "b", NetworkTxGB: 5, Deleted: true},
			},
			daysElapsed:      10,
			expectedActive:   1.0,
			expectedTotal:    1.5,
			expectedEstimate: 3.0,
			expectedDaily:    0.1,
		},
		{
			name:        "empty project",
			daysElapsed: 10,
		},
		{
			name: "zero days elapsed guards derived values",
			services: []domain.ServiceUsage{
				{ID: "a", NetworkTxGB: 10},
			},
			daysElapsed:    0,
			expectedActive: 1.0,
			expectedTotal:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotWith(tt.daysElapsed, tt.services...)

			totals := ComputeProjectTotals(snap, testRates)

			assert.InDelta(t, tt.expectedActive, totals.ActiveUsageUSD, 1e-9)
			assert.InDelta(t, tt.expectedTotal, totals.TotalUsageUSD, 1e-9)
			assert.InDelta(t, tt.expectedEstimate, totals.EstimatedMonthlyUSD, 1e-9)
			assert.InDelta(t, tt.expectedDaily, totals.DailyAverageUSD, 1e-9)
			assert.Equal(t, tt.daysElapsed, totals.DaysElapsed)
		})
	}
}

func TestComputeProjectTotalsEstimateExcludesDeleted(t *testing.T) {
	snap := snapshotWith(15,
		domain.ServiceUsage{ID: "a", NetworkTxGB: 30},
		domain.ServiceUsage{ID: "b", NetworkTxGB: 30, Deleted: true},
	)

	totals := ComputeProjectTotals(snap, testRates)

	// 3.0 active * 30 / 15
	assert.InDelta(t, 6.0, totals.EstimatedMonthlyUSD, 1e-9)
	assert.InDelta(t, 0.2, totals.DailyAverageUSD, 1e-9)
}
