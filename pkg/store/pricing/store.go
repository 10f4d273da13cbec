// Package pricing maps raw usage counters to USD cost under a plan-keyed
// rate table.
//
// Rates per unit (Railway, as of 2024):
//
//	          hobby      pro
//	cpu       0.000463   0.000231  per vCPU-minute
//	memory    0.000231   0.000116  per GB-minute
//	disk      0.000021   0.000021  per GB-minute
//	network   0.10       0.10      per GB egress
//
// Ingress is free and never enters cost.
package pricing

import (
	"fmt"
	"strings"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/domain"
)

// Supported plan names.
const (
	PlanHobby = "hobby"
	PlanPro   = "pro"
)

// Rates is the per-unit price table for one plan, immutable after load.
type Rates struct {
	CPUPerVCPUMinute   float64
	MemoryPerGBMinute  float64
	DiskPerGBMinute    float64
	NetworkPerGBEgress float64
}

// Overrides carries optional custom prices. A nil pointer keeps the plan
// default.
type Overrides struct {
	CPU     *float64
	Memory  *float64
	Disk    *float64
	Network *float64
}

var planRates = map[string]Rates{
	PlanHobby: {
		CPUPerVCPUMinute:   0.000463,
		MemoryPerGBMinute:  0.000231,
		DiskPerGBMinute:    0.000021,
		NetworkPerGBEgress: 0.10,
	},
	PlanPro: {
		CPUPerVCPUMinute:   0.000231,
		MemoryPerGBMinute:  0.000116,
		DiskPerGBMinute:    0.000021,
		NetworkPerGBEgress: 0.10,
	},
}

// Store resolves the active rate table and prices usage against it.
type Store interface {
	Plan() string
	Rates() Rates
	Cost(u domain.ServiceUsage) float64
}

type pricingStore struct {
	plan  string
	rates Rates
}

// NewStore builds a pricing store for the given plan. Plan matching is
// case-insensitive; an unknown plan is a configuration error.
func NewStore(plan string, overrides Overrides) (Store, error) {
	normalized := strings.ToLower(plan)
	rates, ok := planRates[normalized]
	if !ok {
		return nil, fmt.Errorf("invalid plan %q: must be %q or %q", plan, PlanHobby, PlanPro)
	}

	if overrides.CPU != nil {
		rates.CPUPerVCPUMinute = *overrides.CPU
	}
	if overrides.Memory != nil {
		rates.MemoryPerGBMinute = *overrides.Memory
	}
	if overrides.Disk != nil {
		rates.DiskPerGBMinute = *overrides.Disk
	}
	if overrides.Network != nil {
		rates.NetworkPerGBEgress = *overrides.Network
	}

	return &pricingStore{plan: normalized, rates: rates}, nil
}

func (p *pricingStore) Plan() string { return p.plan }

func (p *pricingStore) Rates() Rates { return p.rates }

func (p *pricingStore) Cost(u domain.ServiceUsage) float64 {
	return Cost(u, p.rates)
}

// Cost prices one service's cumulative usage. Pure and total: non-negative
// inputs always yield a non-negative result.
func Cost(u domain.ServiceUsage, r Rates) float64 {
	return u.CPUVCPUMinutes*r.CPUPerVCPUMinute +
		u.MemoryGBMinutes*r.MemoryPerGBMinute +
		u.DiskGBMinutes*r.DiskPerGBMinute +
		u.NetworkTxGB*r.NetworkPerGBEgress
}
