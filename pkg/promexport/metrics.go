// Package promexport maintains the Prometheus gauges for Railway usage
// data. Metric names and label sets are frozen for compatibility with
// existing scrape configs.
//
// Per-service gauges (labels: service, project, icon, group):
// railway_cpu_usage_vcpu_minutes, railway_memory_usage_gb_minutes,
// railway_disk_usage_gb_minutes, railway_network_tx_gb,
// railway_service_cost_usd, railway_service_estimated_monthly_usd.
//
// Per-project gauges (label: project): railway_current_usage_usd,
// railway_estimated_monthly_usd, railway_daily_average_usd,
// railway_days_in_billing_period, railway_days_remaining_in_month,
// railway_exporter_last_scrape_timestamp,
// railway_exporter_scrape_duration_seconds, railway_api_up.
//
// Process gauges (no labels): railway_exporter_memory_bytes,
// railway_exporter_cpu_percent.
package promexport

import (
	"net/http"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/domain"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/aggregate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	serviceLabels = []string{"service", "project", "icon", "group"}
	projectLabels = []string{"project"}
)

// Metrics holds the exporter's gauge vectors behind a dedicated registry so
// the exposition contains only railway_* series.
type Metrics struct {
	cpuUsage                *prometheus.GaugeVec
	memoryUsage             *prometheus.GaugeVec
	diskUsage               *prometheus.GaugeVec
	networkTx               *prometheus.GaugeVec
	serviceCost             *prometheus.GaugeVec
	serviceEstimatedMonthly *prometheus.GaugeVec

	currentUsage          *prometheus.GaugeVec
	estimatedMonthly      *prometheus.GaugeVec
	dailyAverage          *prometheus.GaugeVec
	daysInBillingPeriod   *prometheus.GaugeVec
	daysRemainingInMonth  *prometheus.GaugeVec
	lastScrapeTimestamp   *prometheus.GaugeVec
	scrapeDurationSeconds *prometheus.GaugeVec
	apiUp                 *prometheus.GaugeVec

	exporterMemoryBytes prometheus.Gauge
	exporterCPUPercent  prometheus.Gauge

	registry *prometheus.Registry
}

func New() *Metrics {
	serviceGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, serviceLabels)
	}
	projectGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, projectLabels)
	}

	m := &Metrics{
		cpuUsage:    serviceGauge("railway_cpu_usage_vcpu_minutes", "CPU usage in vCPU-minutes"),
		memoryUsage: serviceGauge("railway_memory_usage_gb_minutes", "Memory usage in GB-minutes"),
		diskUsage:   serviceGauge("railway_disk_usage_gb_minutes", "Disk usage in GB-minutes"),
		networkTx:   serviceGauge("railway_network_tx_gb", "Network egress in GB"),
		serviceCost: serviceGauge("railway_service_cost_usd", "Current service cost in USD"),
		serviceEstimatedMonthly: serviceGauge(
			"railway_service_estimated_monthly_usd", "Estimated monthly service cost in USD"),

		currentUsage:         projectGauge("railway_current_usage_usd", "Total current usage in USD"),
		estimatedMonthly:     projectGauge("railway_estimated_monthly_usd", "Estimated monthly total in USD"),
		dailyAverage:         projectGauge("railway_daily_average_usd", "Average daily spending in USD"),
		daysInBillingPeriod:  projectGauge("railway_days_in_billing_period", "Days elapsed in billing period"),
		daysRemainingInMonth: projectGauge("railway_days_remaining_in_month", "Days remaining in month"),
		lastScrapeTimestamp: projectGauge(
			"railway_exporter_last_scrape_timestamp", "Unix timestamp of last successful scrape"),
		scrapeDurationSeconds: projectGauge(
			"railway_exporter_scrape_duration_seconds", "Duration of API scrape in seconds"),
		apiUp: projectGauge("railway_api_up", "Whether Railway API is reachable (1=up, 0=down)"),

		exporterMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railway_exporter_memory_bytes",
			Help: "Memory usage of exporter process in bytes",
		}),
		exporterCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railway_exporter_cpu_percent",
			Help: "CPU usage percentage of exporter process",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.cpuUsage, m.memoryUsage, m.diskUsage, m.networkTx,
		m.serviceCost, m.serviceEstimatedMonthly,
		m.currentUsage, m.estimatedMonthly, m.dailyAverage,
		m.daysInBillingPeriod, m.daysRemainingInMonth,
		m.lastScrapeTimestamp, m.scrapeDurationSeconds, m.apiUp,
		m.exporterMemoryBytes, m.exporterCPUPercent,
	)
	return m
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetAPIUp records upstream reachability for the project.
func (m *Metrics) SetAPIUp(projectID string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	m.apiUp.WithLabelValues(projectID).Set(value)
}

// UpdateSnapshot replaces all usage gauges with values from a successful
// scrape. Per-service vectors are reset first so renamed or regrouped
// services do not leave stale series behind.
func (m *Metrics) UpdateSnapshot(
	snap *domain.ProjectSnapshot,
	services []aggregate.ServiceTotals,
	project aggregate.ProjectTotals,
) {
	m.cpuUsage.Reset()
	m.memoryUsage.Reset()
	m.diskUsage.Reset()
	m.networkTx.Reset()
	m.serviceCost.Reset()
	m.serviceEstimatedMonthly.Reset()

	for _, st := range services {
		svc := st.Service
		labels := []string{svc.Name, snap.ProjectName, svc.Icon, svc.Group}
		m.cpuUsage.WithLabelValues(labels...).Set(svc.CPUVCPUMinutes)
		m.memoryUsage.WithLabelValues(labels...).Set(svc.MemoryGBMinutes)
		m.diskUsage.WithLabelValues(labels...).Set(svc.DiskGBMinutes)
		m.networkTx.WithLabelValues(labels...).Set(svc.NetworkTxGB)
		m.serviceCost.WithLabelValues(labels...).Set(st.CostUSD)
		m.serviceEstimatedMonthly.WithLabelValues(labels...).Set(st.EstimatedMonthlyUSD)
	}

	m.currentUsage.WithLabelValues(snap.ProjectName).Set(project.ActiveUsageUSD)
	m.estimatedMonthly.WithLabelValues(snap.ProjectName).Set(project.EstimatedMonthlyUSD)
	m.dailyAverage.WithLabelValues(snap.ProjectName).Set(project.DailyAverageUSD)
	m.daysInBillingPeriod.WithLabelValues(snap.ProjectName).Set(float64(project.DaysElapsed))
	m.daysRemainingInMonth.WithLabelValues(snap.ProjectName).Set(float64(project.DaysRemaining))
	m.lastScrapeTimestamp.WithLabelValues(snap.ProjectName).Set(float64(snap.ScrapedAt.Unix()))
	m.scrapeDurationSeconds.WithLabelValues(snap.ProjectName).Set(snap.Duration.Seconds())
}

// UpdateProcess refreshes the exporter's own process gauges.
func (m *Metrics) UpdateProcess(memoryBytes, cpuPercent float64) {
	m.exporterMemoryBytes.Set(memoryBytes)
	m.exporterCPUPercent.Set(cpuPercent)
}
