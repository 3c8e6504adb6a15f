package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/domain/computer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
)

// MetricsAggregator serves a JSON view of the collector and the live
// resources of every computer.
type MetricsAggregator struct {
	metrics *monitoring.Metrics
	manager *computer.Manager
}

// NewMetricsAggregator creates a metrics aggregator
func NewMetricsAggregator(metrics *monitoring.Metrics, manager *computer.Manager) *MetricsAggregator {
	return &MetricsAggregator{
		metrics: metrics,
		manager: manager,
	}
}

// MetricsSnapshot represents a snapshot of all sandbox metrics
type MetricsSnapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Server    monitoring.MetricsSnapshot `json:"server"`
	Resources []monitoring.ResourceCount `json:"resources"`
	Summary   MetricsSummary             `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	ActiveComputers  int     `json:"active_computers"`
	ActiveStreams    int     `json:"active_streams"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// GetAggregatedMetrics returns the metrics snapshot
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	snapshot := ma.metrics.Snapshot()
	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Server:    snapshot,
		Resources: ma.manager.ResourceCounts(),
		Summary:   ma.calculateSummary(snapshot),
	})
}

// calculateSummary computes high-level summary metrics
func (ma *MetricsAggregator) calculateSummary(snapshot monitoring.MetricsSnapshot) MetricsSummary {
	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000 // Convert to ms
	}

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	return MetricsSummary{
		TotalRequests:    snapshot.TotalRequests,
		AverageLatencyMs: avgLatency,
		ErrorRate:        errorRate,
		ActiveComputers:  ma.manager.Count(),
		ActiveStreams:    int(snapshot.ActiveStreams),
		UptimeSeconds:    ma.metrics.UptimeSeconds(),
	}
}
