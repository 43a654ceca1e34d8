package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the latest sample of the server process.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	Status     string  `json:"status"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
	NumGC      uint32  `json:"numGc"`
}

// Health is what the /health endpoint reports.
type Health struct {
	Status      string       `json:"status"`
	Uptime      string       `json:"uptime"`
	Connections int          `json:"connections"`
	OnlineUsers int          `json:"onlineUsers"`
	Process     ProcessStats `json:"process"`
	SampledAt   time.Time    `json:"sampledAt"`
}

// MonitoringManager keeps the latest process sample for the health endpoint.
type MonitoringManager struct {
	log       *slog.Logger
	startedAt time.Time
	proc      *process.Process

	mu     sync.RWMutex
	latest ProcessStats
	at     time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	mm := &MonitoringManager{log: log, startedAt: time.Now()}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	} else {
		mm.proc = p
	}
	return mm
}

// Sample reads the process stats with gopsutil and stores them.
func (mm *MonitoringManager) Sample() (ProcessStats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats := ProcessStats{
		PID:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
		NumGC:      ms.NumGC,
	}

	if mm.proc != nil {
		memInfo, err := mm.proc.MemoryInfo()
		if err != nil {
			return stats, err
		}
		cpu, err := mm.proc.CPUPercent()
		if err != nil {
			return stats, err
		}
		status, err := mm.proc.Status()
		if err != nil {
			return stats, err
		}
		stats.RSSBytes = memInfo.RSS
		stats.CPUPercent = cpu
		stats.Status = status
	}

	mm.mu.Lock()
	mm.latest = stats
	mm.at = time.Now().UTC()
	mm.mu.Unlock()
	return stats, nil
}

// GetLatest returns the last sample, taking one if none exists yet.
func (mm *MonitoringManager) GetLatest() (ProcessStats, time.Time) {
	mm.mu.RLock()
	stats, at := mm.latest, mm.at
	mm.mu.RUnlock()
	if at.IsZero() {
		if sampled, err := mm.Sample(); err == nil {
			mm.mu.RLock()
			at = mm.at
			mm.mu.RUnlock()
			return sampled, at
		}
	}
	return stats, at
}

func (mm *MonitoringManager) Health(connections, onlineUsers int) Health {
	stats, at := mm.GetLatest()
	return Health{
		Status:      "ok",
		Uptime:      time.Since(mm.startedAt).Round(time.Second).String(),
		Connections: connections,
		OnlineUsers: onlineUsers,
		Process:     stats,
		SampledAt:   at,
	}
}
