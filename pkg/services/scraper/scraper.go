// Package scraper drives the periodic collection loop: fetch project
// metadata and usage from Railway, normalize into a snapshot, refresh the
// Prometheus gauges, and broadcast the rendered metrics to stream
// subscribers.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/api"
	"github.com/brilliant-almazov/railway-exporter/pkg/models/domain"
	"github.com/brilliant-almazov/railway-exporter/pkg/promexport"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/aggregate"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/broadcast"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/config"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/railway"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/icons"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/metrics"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
	"github.com/rs/zerolog"
)

// UngroupedName is the fallback group for services matching no pattern.
const UngroupedName = "ungrouped"

// Client is the slice of the Railway API the scraper depends on.
type Client interface {
	GetProject(ctx context.Context, projectID string) (*railway.Project, error)
	GetUsage(ctx context.Context, projectID string) (railway.Usage, error)
}

// Scraper owns the collection loop. It is the single writer of the metrics
// store and the Prometheus gauges.
type Scraper struct {
	cfg    *config.Config
	client Client
	store  *metrics.Store
	prices pricing.Store
	prom   *promexport.Metrics
	caster *broadcast.Broadcaster

	// nil when the icon cache is disabled
	icons *icons.Cache

	now func() time.Time
}

func New(
	cfg *config.Config,
	client Client,
	store *metrics.Store,
	prices pricing.Store,
	prom *promexport.Metrics,
	caster *broadcast.Broadcaster,
	iconCache *icons.Cache,
) *Scraper {
	return &Scraper{
		cfg:    cfg,
		client: client,
		store:  store,
		prices: prices,
		prom:   prom,
		caster: caster,
		icons:  iconCache,
		now:    time.Now,
	}
}

// Run scrapes once immediately, then on every tick until ctx is done.
func (s *Scraper) Run(ctx context.Context) {
	log := zerolog.Ctx(ctx)
	interval := time.Duration(s.cfg.ScrapeInterval) * time.Second
	log.Info().Dur("interval", interval).Msg("starting scrape loop")

	s.ScrapeOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scrape loop stopped")
			return
		case <-ticker.C:
			s.ScrapeOnce(ctx)
		}
	}
}

// ScrapeOnce performs one collection cycle. On failure the previous snapshot
// stays current and only the scrape counters and the api_up gauge change.
func (s *Scraper) ScrapeOnce(ctx context.Context) {
	log := zerolog.Ctx(ctx)
	started := s.now()
	s.store.RecordAttempt()

	project, err := s.client.GetProject(ctx, s.cfg.ProjectID)
	if err != nil {
		s.failScrape(ctx, fmt.Errorf("failed to fetch project: %w", err))
		return
	}
	usage, err := s.client.GetUsage(ctx, s.cfg.ProjectID)
	if err != nil {
		s.failScrape(ctx, fmt.Errorf("failed to fetch usage: %w", err))
		return
	}

	finished := s.now()
	snap := s.buildSnapshot(ctx, project, usage, finished)
	snap.Duration = finished.Sub(started)

	s.store.Update(snap)
	s.store.RecordSuccess(finished)
	s.prom.SetAPIUp(s.cfg.ProjectID, true)

	rates := s.prices.Rates()
	serviceTotals := aggregate.ComputeServiceTotals(snap, rates)
	projectTotals := aggregate.ComputeProjectTotals(snap, rates)
	s.prom.UpdateSnapshot(snap, serviceTotals, projectTotals)

	s.publish(ctx, snap, serviceTotals, projectTotals)

	log.Info().
		Int("services", len(snap.Services)).
		Float64("current_usage_usd", projectTotals.ActiveUsageUSD).
		Dur("duration", snap.Duration).
		Msg("scrape complete")
}

func (s *Scraper) failScrape(ctx context.Context, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Msg("scrape failed")
	s.store.RecordFailure(err)
	s.prom.SetAPIUp(s.cfg.ProjectID, false)
}

// buildSnapshot merges the fresh service list and usage with the previous
// snapshot. Services keep their discovery order; services that disappeared
// upstream are retained as deleted with their last known counters so
// period-to-date cost stays complete.
func (s *Scraper) buildSnapshot(
	ctx context.Context,
	project *railway.Project,
	usage railway.Usage,
	at time.Time,
) *domain.ProjectSnapshot {
	live := make(map[string]railway.Service, len(project.Services))
	for _, svc := range project.Services {
		live[svc.ID] = svc
	}

	prev := s.store.Get()
	var prevServices []domain.ServiceUsage
	if prev != nil {
		prevServices = prev.Services
	}

	services := make([]domain.ServiceUsage, 0, len(project.Services))
	seen := make(map[string]bool, len(project.Services))

	for _, old := range prevServices {
		if svc, ok := live[old.ID]; ok {
			services = append(services, s.normalizeService(ctx, svc, usage[svc.ID], false))
		} else if counters, ok := usage[old.ID]; ok {
			// Gone from the project but still billed this period.
			deleted := railway.Service{ID: old.ID, Name: old.Name, Icon: old.Icon}
			services = append(services, s.normalizeService(ctx, deleted, counters, true))
		} else {
			carried := old
			carried.Deleted = true
			services = append(services, carried)
		}
		seen[old.ID] = true
	}

	for _, svc := range project.Services {
		if !seen[svc.ID] {
			services = append(services, s.normalizeService(ctx, svc, usage[svc.ID], false))
			seen[svc.ID] = true
		}
	}

	// Usage rows for services never observed alive: all we have is the ID.
	for id, counters := range usage {
		if !seen[id] {
			orphan := railway.Service{ID: id, Name: id}
			services = append(services, s.normalizeService(ctx, orphan, counters, true))
		}
	}

	now := at.UTC()
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()

	return &domain.ProjectSnapshot{
		ProjectName:   project.Name,
		Services:      services,
		DaysElapsed:   now.Day(),
		DaysRemaining: daysInMonth - now.Day(),
		ScrapedAt:     at,
	}
}

func (s *Scraper) normalizeService(
	ctx context.Context,
	svc railway.Service,
	counters map[string]float64,
	deleted bool,
) domain.ServiceUsage {
	return domain.ServiceUsage{
		ID:              svc.ID,
		Name:            svc.Name,
		Icon:            s.resolveIcon(ctx, svc.Name, svc.Icon),
		Group:           s.groupFor(svc.Name),
		Deleted:         deleted,
		CPUVCPUMinutes:  s.clamp(ctx, svc.Name, "cpu", counters[railway.MeasurementCPU]),
		MemoryGBMinutes: s.clamp(ctx, svc.Name, "memory", counters[railway.MeasurementMemory]),
		DiskGBMinutes:   s.clamp(ctx, svc.Name, "disk", counters[railway.MeasurementDisk]),
		NetworkTxGB:     s.clamp(ctx, svc.Name, "network_tx", counters[railway.MeasurementNetworkTx]),
		NetworkRxGB:     s.clamp(ctx, svc.Name, "network_rx", counters[railway.MeasurementNetworkRx]),
	}
}

// clamp floors a counter at zero. The API occasionally returns small negative
// values right after a service restart.
func (s *Scraper) clamp(ctx context.Context, service, counter string, v float64) float64 {
	if v < 0 {
		zerolog.Ctx(ctx).Warn().
			Str("service", service).
			Str("counter", counter).
			Float64("value", v).
			Msg("negative usage value clamped to zero")
		return 0
	}
	return v
}

// groupFor assigns the first configured group, in sorted name order, with a
// pattern contained in the service name. Matching is case-insensitive.
func (s *Scraper) groupFor(serviceName string) string {
	lower := strings.ToLower(serviceName)
	for _, group := range s.cfg.GroupNames() {
		for _, pattern := range s.cfg.ServiceGroups[group] {
			if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
				return group
			}
		}
	}
	return UngroupedName
}

// resolveIcon converts the upstream icon URL per the configured delivery
// mode. With the cache disabled the URL passes through untouched.
func (s *Scraper) resolveIcon(ctx context.Context, name, iconURL string) string {
	if s.icons == nil || iconURL == "" {
		return iconURL
	}
	if s.cfg.IconCache.Mode == config.IconModeLink {
		if s.icons.EnsureCached(ctx, name, iconURL) {
			return s.cfg.IconCache.BaseURL + "/static/icons/services/" + url.PathEscape(name)
		}
		return iconURL
	}
	return s.icons.Resolve(ctx, name, iconURL)
}

// publish renders the JSON metrics body and pushes it to stream subscribers.
func (s *Scraper) publish(
	ctx context.Context,
	snap *domain.ProjectSnapshot,
	serviceTotals []aggregate.ServiceTotals,
	projectTotals aggregate.ProjectTotals,
) {
	resp := RenderMetrics(snap, serviceTotals, projectTotals)
	payload, err := json.Marshal(api.NewMetricsMessage(resp))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode metrics broadcast")
		return
	}
	s.caster.Publish(payload)
}

// RenderMetrics shapes a snapshot and its totals into the wire response.
// Services are listed in cost-descending order.
func RenderMetrics(
	snap *domain.ProjectSnapshot,
	serviceTotals []aggregate.ServiceTotals,
	projectTotals aggregate.ProjectTotals,
) api.MetricsResponse {
	services := make([]api.ServiceData, 0, len(serviceTotals))
	for _, st := range serviceTotals {
		svc := st.Service
		services = append(services, api.ServiceData{
			ID:                  svc.ID,
			Name:                svc.Name,
			Icon:                svc.Icon,
			Group:               svc.Group,
			CPUUsage:            svc.CPUVCPUMinutes,
			MemoryUsage:         svc.MemoryGBMinutes,
			DiskUsage:           svc.DiskGBMinutes,
			NetworkTx:           svc.NetworkTxGB,
			NetworkRx:           svc.NetworkRxGB,
			CostUSD:             st.CostUSD,
			EstimatedMonthlyUSD: st.EstimatedMonthlyUSD,
			IsDeleted:           svc.Deleted,
		})
	}

	return api.MetricsResponse{
		Project: api.ProjectSummary{
			Name:                snap.ProjectName,
			CurrentUsageUSD:     projectTotals.ActiveUsageUSD,
			EstimatedMonthlyUSD: projectTotals.EstimatedMonthlyUSD,
			DailyAverageUSD:     projectTotals.DailyAverageUSD,
			DaysElapsed:         projectTotals.DaysElapsed,
			DaysRemaining:       projectTotals.DaysRemaining,
		},
		Services:              services,
		ScrapeTimestamp:       snap.ScrapedAt.Unix(),
		ScrapeDurationSeconds: snap.Duration.Seconds(),
	}
}
