package workers

import (
	"context"
	"log/slog"
	"team-chat/observability"
	"time"
)

// HeartbeatWorker samples the process stats on a fixed interval and feeds
// both the health snapshot and the Prometheus gauges.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	metrics    *observability.Metrics
	interval   time.Duration
}

func NewHeartbeatWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	metrics *observability.Metrics,
	interval time.Duration,
) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, metrics: metrics, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := w.monitoring.Sample()
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.metrics.ProcessStats(stats.RSSBytes, stats.CPUPercent)
		}
	}
}
