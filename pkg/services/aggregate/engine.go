// Package aggregate derives project and per-service cost totals from a
// snapshot and a rate table. Every function here is pure: same snapshot and
// rates in, same totals out, no hidden state.
package aggregate

import (
	"sort"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/domain"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
)

// ServiceTotals is one service's derived costs and per-minute averages.
type ServiceTotals struct {
	Service             domain.ServiceUsage
	CostUSD             float64
	EstimatedMonthlyUSD float64

	// Cumulative usage divided by minutes elapsed in the billing period,
	// zero when no time has elapsed.
	AvgCPUVCPUs float64
	AvgMemoryGB float64
	AvgDiskGB   float64
}

// ProjectTotals is the project-level derived aggregate. Active sums exclude
// deleted services; Total sums include them. Callers choose which to show,
// the engine never conflates the two.
type ProjectTotals struct {
	ActiveUsageUSD      float64
	TotalUsageUSD       float64
	EstimatedMonthlyUSD float64
	DailyAverageUSD     float64
	DaysElapsed         int
	DaysRemaining       int
}

// ComputeServiceTotals prices every service in the snapshot. The result is
// ordered by cost descending; equal costs keep their discovery order, so
// recomputing over an unchanged snapshot never reorders.
func ComputeServiceTotals(snap *domain.ProjectSnapshot, rates pricing.Rates) []ServiceTotals {
	minutes := snap.ElapsedMinutes()
	totals := make([]ServiceTotals, 0, len(snap.Services))

	for _, svc := range snap.Services {
		st := ServiceTotals{
			Service:             svc,
			CostUSD:             pricing.Cost(svc, rates),
			AvgCPUVCPUs:         ratio(svc.CPUVCPUMinutes, minutes),
			AvgMemoryGB:         ratio(svc.MemoryGBMinutes, minutes),
			AvgDiskGB:           ratio(svc.DiskGBMinutes, minutes),
		}
		st.EstimatedMonthlyUSD = projectToMonth(st.CostUSD, snap.DaysElapsed)
		totals = append(totals, st)
	}

	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].CostUSD > totals[j].CostUSD
	})
	return totals
}

// ComputeProjectTotals sums service costs into project aggregates. The
// monthly estimate and daily average derive from active usage only.
func ComputeProjectTotals(snap *domain.ProjectSnapshot, rates pricing.Rates) ProjectTotals {
	totals := ProjectTotals{
		DaysElapsed:   snap.DaysElapsed,
		DaysRemaining: snap.DaysRemaining,
	}

	for _, svc := range snap.Services {
		cost := pricing.Cost(svc, rates)
		totals.TotalUsageUSD += cost
		if !svc.Deleted {
			totals.ActiveUsageUSD += cost
		}
	}

	totals.EstimatedMonthlyUSD = projectToMonth(totals.ActiveUsageUSD, snap.DaysElapsed)
	totals.DailyAverageUSD = ratio(totals.ActiveUsageUSD, float64(snap.DaysElapsed))
	return totals
}

// projectToMonth extrapolates a period-to-date cost onto a 30-day month.
func projectToMonth(cost float64, daysElapsed int) float64 {
	if daysElapsed <= 0 {
		return 0
	}
	return cost * 30 / float64(daysElapsed)
}

func ratio(value, denom float64) float64 {
	if denom <= 0 {
		return 0
	}
	return value / denom
}
