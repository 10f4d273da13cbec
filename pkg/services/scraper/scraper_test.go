package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/api"
	"github.com/brilliant-almazov/railway-exporter/pkg/promexport"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/broadcast"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/config"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/railway"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/metrics"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	project    *railway.Project
	usage      railway.Usage
	projectErr error
	usageErr   error
}

func (f *fakeClient) GetProject(context.Context, string) (*railway.Project, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	return f.project, nil
}

func (f *fakeClient) GetUsage(context.Context, string) (railway.Usage, error) {
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	return f.usage, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ProjectID:      "proj-1",
		Plan:           "hobby",
		ScrapeInterval: 300,
		IconCache:      config.IconCache{Enabled: false, Mode: config.IconModeBase64},
	}
}

func newTestScraper(t *testing.T, cfg *config.Config, client Client) (*Scraper, *metrics.Store, *broadcast.Broadcaster) {
	t.Helper()
	prices, err := pricing.NewStore(cfg.Plan, pricing.Overrides{})
	require.NoError(t, err)

	store := metrics.NewStore()
	caster := broadcast.New()
	s := New(cfg, client, store, prices, promexport.New(), caster, nil)
	s.now = func() time.Time {
		return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	}
	return s, store, caster
}

func TestScrapeOnceSuccess(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{
			Name: "my-project",
			Services: []railway.Service{
				{ID: "svc-1", Name: "api"},
				{ID: "svc-2", Name: "worker"},
			},
		},
		usage: railway.Usage{
			"svc-1": {
				railway.MeasurementCPU:       1440,
				railway.MeasurementMemory:    720,
				railway.MeasurementNetworkTx: 0.5,
				railway.MeasurementNetworkRx: 2.5,
			},
		},
	}
	s, store, _ := newTestScraper(t, testConfig(), client)

	s.ScrapeOnce(context.Background())

	snap := store.Get()
	require.NotNil(t, snap)
	assert.Equal(t, "my-project", snap.ProjectName)
	assert.Equal(t, 15, snap.DaysElapsed)
	assert.Equal(t, 16, snap.DaysRemaining) // August has 31 days

	require.Len(t, snap.Services, 2)
	assert.Equal(t, "api", snap.Services[0].Name)
	assert.Equal(t, 1440.0, snap.Services[0].CPUVCPUMinutes)
	assert.Equal(t, 2.5, snap.Services[0].NetworkRxGB)
	assert.False(t, snap.Services[0].Deleted)

	// No usage rows yet for svc-2: counters default to zero.
	assert.Zero(t, snap.Services[1].CPUVCPUMinutes)

	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.TotalScrapes)
	assert.Zero(t, stats.FailedScrapes)
	require.NotNil(t, stats.LastSuccess)
}

func TestScrapeOncePublishesMetrics(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{{ID: "s1", Name: "api"}}},
		usage:   railway.Usage{"s1": {railway.MeasurementNetworkTx: 1}},
	}
	s, _, caster := newTestScraper(t, testConfig(), client)

	sub := caster.Subscribe()
	defer sub.Close()

	s.ScrapeOnce(context.Background())

	select {
	case payload := <-sub.C():
		var msg struct {
			Type string              `json:"type"`
			Data api.MetricsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, api.WsTypeMetrics, msg.Type)
		assert.Equal(t, "demo", msg.Data.Project.Name)
		require.Len(t, msg.Data.Services, 1)
		assert.InDelta(t, 0.10, msg.Data.Services[0].CostUSD, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("no metrics broadcast after scrape")
	}
}

func TestScrapeFailureKeepsPreviousSnapshot(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{{ID: "s1", Name: "api"}}},
		usage:   railway.Usage{},
	}
	s, store, _ := newTestScraper(t, testConfig(), client)

	s.ScrapeOnce(context.Background())
	require.NotNil(t, store.Get())

	client.projectErr = fmt.Errorf("api down")
	s.ScrapeOnce(context.Background())

	snap := store.Get()
	require.NotNil(t, snap)
	assert.Equal(t, "demo", snap.ProjectName)

	stats := store.Stats()
	assert.Equal(t, uint64(2), stats.TotalScrapes)
	assert.Equal(t, uint64(1), stats.FailedScrapes)
	assert.Contains(t, stats.LastError, "api down")
}

func TestUsageFailureCountsAsFailed(t *testing.T) {
	client := &fakeClient{
		project:  &railway.Project{Name: "demo"},
		usageErr: fmt.Errorf("usage unavailable"),
	}
	s, store, _ := newTestScraper(t, testConfig(), client)

	s.ScrapeOnce(context.Background())

	assert.Nil(t, store.Get())
	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.FailedScrapes)
	assert.Contains(t, stats.LastError, "usage unavailable")
}

func TestDeletedServiceRetainedWithUsage(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{
			{ID: "s1", Name: "api"},
			{ID: "s2", Name: "old-worker"},
		}},
		usage: railway.Usage{
			"s1": {railway.MeasurementNetworkTx: 1},
			"s2": {railway.MeasurementNetworkTx: 2},
		},
	}
	s, store, _ := newTestScraper(t, testConfig(), client)
	s.ScrapeOnce(context.Background())

	// Service removed from the project but still billed this period.
	client.project = &railway.Project{Name: "demo", Services: []railway.Service{{ID: "s1", Name: "api"}}}
	client.usage = railway.Usage{
		"s1": {railway.MeasurementNetworkTx: 1.5},
		"s2": {railway.MeasurementNetworkTx: 2},
	}
	s.ScrapeOnce(context.Background())

	snap := store.Get()
	require.Len(t, snap.Services, 2)
	assert.Equal(t, "old-worker", snap.Services[1].Name)
	assert.True(t, snap.Services[1].Deleted)
	assert.Equal(t, 2.0, snap.Services[1].NetworkTxGB)

	// Gone from usage too: carried forward with last known counters.
	client.usage = railway.Usage{"s1": {railway.MeasurementNetworkTx: 1.6}}
	s.ScrapeOnce(context.Background())

	snap = store.Get()
	require.Len(t, snap.Services, 2)
	assert.True(t, snap.Services[1].Deleted)
	assert.Equal(t, 2.0, snap.Services[1].NetworkTxGB)
	assert.Equal(t, "old-worker", snap.Services[1].Name)
}

func TestNewServiceAppendsAtEnd(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{{ID: "s1", Name: "api"}}},
		usage:   railway.Usage{},
	}
	s, store, _ := newTestScraper(t, testConfig(), client)
	s.ScrapeOnce(context.Background())

	client.project = &railway.Project{Name: "demo", Services: []railway.Service{
		{ID: "s2", Name: "brand-new"},
		{ID: "s1", Name: "api"},
	}}
	s.ScrapeOnce(context.Background())

	snap := store.Get()
	require.Len(t, snap.Services, 2)
	assert.Equal(t, "api", snap.Services[0].Name)
	assert.Equal(t, "brand-new", snap.Services[1].Name)
}

func TestOrphanUsageMarkedDeleted(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{{ID: "s1", Name: "api"}}},
		usage: railway.Usage{
			"s1":    {railway.MeasurementNetworkTx: 1},
			"ghost": {railway.MeasurementNetworkTx: 3},
		},
	}
	s, store, _ := newTestScraper(t, testConfig(), client)

	s.ScrapeOnce(context.Background())

	snap := store.Get()
	require.Len(t, snap.Services, 2)
	assert.Equal(t, "ghost", snap.Services[1].ID)
	assert.True(t, snap.Services[1].Deleted)
	assert.Equal(t, 3.0, snap.Services[1].NetworkTxGB)
}

func TestNegativeCountersClampedToZero(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{{ID: "s1", Name: "api"}}},
		usage: railway.Usage{
			"s1": {
				railway.MeasurementCPU:       -5,
				railway.MeasurementNetworkTx: 1,
			},
		},
	}
	s, store, _ := newTestScraper(t, testConfig(), client)

	s.ScrapeOnce(context.Background())

	svc := store.Get().Services[0]
	assert.Zero(t, svc.CPUVCPUMinutes)
	assert.Equal(t, 1.0, svc.NetworkTxGB)
}

func TestGrouping(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceGroups = map[string][]string{
		"databases": {"postgres", "redis"},
		"workers":   {"worker"},
	}

	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{
			{ID: "s1", Name: "Postgres-Main"},
			{ID: "s2", Name: "queue-worker"},
			{ID: "s3", Name: "frontend"},
		}},
		usage: railway.Usage{},
	}
	s, store, _ := newTestScraper(t, cfg, client)

	s.ScrapeOnce(context.Background())

	snap := store.Get()
	assert.Equal(t, "databases", snap.Services[0].Group)
	assert.Equal(t, "workers", snap.Services[1].Group)
	assert.Equal(t, UngroupedName, snap.Services[2].Group)
}

func TestRenderMetricsShape(t *testing.T) {
	client := &fakeClient{
		project: &railway.Project{Name: "demo", Services: []railway.Service{
			{ID: "s1", Name: "api"},
			{ID: "s2", Name: "worker"},
		}},
		usage: railway.Usage{
			"s1": {railway.MeasurementNetworkTx: 1},
			"s2": {railway.MeasurementNetworkTx: 5},
		},
	}
	s, store, caster := newTestScraper(t, testConfig(), client)

	sub := caster.Subscribe()
	defer sub.Close()
	s.ScrapeOnce(context.Background())

	payload := <-sub.C()
	var msg struct {
		Data api.MetricsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))

	// Services are cost-descending.
	require.Len(t, msg.Data.Services, 2)
	assert.Equal(t, "worker", msg.Data.Services[0].Name)
	assert.Equal(t, "api", msg.Data.Services[1].Name)

	assert.Equal(t, store.Get().ScrapedAt.Unix(), msg.Data.ScrapeTimestamp)
	assert.Equal(t, 15, msg.Data.Project.DaysElapsed)
}
