// Package exporter serves the HTTP surface: Prometheus and JSON metrics,
// the status document, health, and cached service icons.
package exporter

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/api"
	"github.com/brilliant-almazov/railway-exporter/pkg/promexport"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/aggregate"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/broadcast"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/config"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/procinfo"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/scraper"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/icons"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/metrics"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handler struct {
	cfg     *config.Config
	store   *metrics.Store
	prices  pricing.Store
	prom    *promexport.Metrics
	proc    *procinfo.Provider
	caster  *broadcast.Broadcaster
	version string
	started time.Time

	// nil when the icon cache is disabled
	icons *icons.Cache
}

func NewHandler(
	cfg *config.Config,
	store *metrics.Store,
	prices pricing.Store,
	prom *promexport.Metrics,
	proc *procinfo.Provider,
	caster *broadcast.Broadcaster,
	iconCache *icons.Cache,
	version string,
) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   store,
		prices:  prices,
		prom:    prom,
		proc:    proc,
		caster:  caster,
		icons:   iconCache,
		version: version,
		started: time.Now(),
	}
}

// Metrics serves GET /metrics. Clients that accept application/json get the
// JSON body; everyone else gets Prometheus text exposition.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.prom.UpdateProcess(h.proc.MemoryBytes(), h.proc.Status().CPUPercent)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		h.metricsJSON(w, r)
		return
	}
	h.prom.Handler().ServeHTTP(w, r)
}

func (h *Handler) metricsJSON(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	w.Header().Set("Content-Type", "application/json")

	snap := h.store.Get()
	if snap == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(map[string]string{"error": "No data yet"}); err != nil {
			logger.Error().Err(err).Msg("failed to encode error response")
		}
		return
	}

	rates := h.prices.Rates()
	resp := scraper.RenderMetrics(
		snap,
		aggregate.ComputeServiceTotals(snap, rates),
		aggregate.ComputeProjectTotals(snap, rates),
	)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("failed to encode metrics")
	}
}

// Health serves GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// Status serves GET /status with the full server status document.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	projectName := ""
	if snap := h.store.Get(); snap != nil {
		projectName = snap.ProjectName
	}

	status := api.ServerStatus{
		Version:       h.version,
		ProjectName:   projectName,
		UptimeSeconds: uint64(time.Since(h.started).Seconds()),
		Endpoints: api.EndpointStatus{
			Prometheus: true,
			JSON:       true,
			Websocket:  h.cfg.WebsocketEn,
			Health:     true,
		},
		Config:  h.configStatus(),
		Process: h.proc.Status(),
		API:     h.apiStatus(),
	}
	if h.icons != nil {
		stats := h.icons.Stats()
		status.IconCache = &api.IconCacheStats{
			Count:       stats.Count,
			TotalBytes:  stats.TotalBytes,
			MinBytes:    stats.MinBytes,
			MaxBytes:    stats.MaxBytes,
			MedianBytes: stats.MedianBytes,
			AvgBytes:    stats.AvgBytes,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Error().Err(err).Msg("failed to encode status")
	}
}

func (h *Handler) configStatus() api.ConfigStatus {
	rates := h.prices.Rates()

	iconCache := api.IconCacheConfig{
		Enabled:  h.cfg.IconCache.Enabled,
		Mode:     h.cfg.IconCache.Mode,
		MaxCount: h.cfg.IconCache.MaxCount,
	}
	if h.cfg.IconCache.Mode == config.IconModeLink {
		maxAge := h.cfg.IconCache.MaxAge
		baseURL := h.cfg.IconCache.BaseURL
		iconCache.MaxAge = &maxAge
		iconCache.BaseURL = &baseURL
	}

	return api.ConfigStatus{
		Plan:                  h.prices.Plan(),
		ScrapeIntervalSeconds: h.cfg.ScrapeInterval,
		APIURL:                h.cfg.APIURL,
		ServiceGroups:         h.cfg.GroupNames(),
		Prices: api.PriceValues{
			CPU:     rates.CPUPerVCPUMinute,
			Memory:  rates.MemoryPerGBMinute,
			Disk:    rates.DiskPerGBMinute,
			Network: rates.NetworkPerGBEgress,
		},
		Gzip: api.GzipStatus{
			Enabled: h.cfg.Gzip.Enabled,
			MinSize: h.cfg.Gzip.MinSize,
			Level:   h.cfg.Gzip.Level,
		},
		IconCache: iconCache,
	}
}

func (h *Handler) apiStatus() api.APIStatus {
	stats := h.store.Stats()
	status := api.APIStatus{
		TotalScrapes:  stats.TotalScrapes,
		FailedScrapes: stats.FailedScrapes,
	}
	if stats.LastSuccess != nil {
		ts := stats.LastSuccess.Unix()
		status.LastSuccess = &ts
	}
	if stats.LastError != "" {
		msg := stats.LastError
		status.LastError = &msg
	}
	return status
}

// WsStatus builds the lightweight status payload pushed over WebSocket.
func (h *Handler) WsStatus() api.WsStatus {
	proc := h.proc.Status()
	return api.WsStatus{
		UptimeSeconds: uint64(time.Since(h.started).Seconds()),
		MemoryMB:      proc.MemoryMB,
		CPUPercent:    proc.CPUPercent,
		API:           h.apiStatus(),
		WsClients:     h.caster.Count(),
	}
}

// ServiceIcon serves GET /static/icons/services/{service} from the icon
// cache. Uncached icons are a 404; the client falls back to the source URL
// it already has.
func (h *Handler) ServiceIcon(w http.ResponseWriter, r *http.Request) {
	if h.icons == nil {
		http.NotFound(w, r)
		return
	}

	name := chi.URLParam(r, "service")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	payload, ok := h.icons.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	etag := iconETag(payload.Data)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", payload.ContentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.cfg.IconCache.MaxAge))
	w.Header().Set("ETag", etag)
	_, _ = w.Write(payload.Data)
}

func iconETag(data []byte) string {
	hash := fnv.New64a()
	_, _ = hash.Write(data)
	return fmt.Sprintf("%q", fmt.Sprintf("%016x", hash.Sum64()))
}
