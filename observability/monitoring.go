// Package observability aggregates runtime telemetry for the stats endpoint
// and the inspector. Counters are cheap atomics bumped from the hot path;
// the heavier process probing happens only when a snapshot is requested.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is the snapshot served to operators.
type Stats struct {
	ChatsCreated         uint64  `json:"chats_created"`
	MessagesStored       uint64  `json:"messages_stored"`
	GenerationsStarted   uint64  `json:"generations_started"`
	GenerationsFinalized uint64  `json:"generations_finalized"`
	GenerationsFailed    uint64  `json:"generations_failed"`
	StreamAttaches       uint64  `json:"stream_attaches"`
	TitlesSet            uint64  `json:"titles_set"`
	SearchQueries        uint64  `json:"search_queries"`
	AllocMemMb           uint64  `json:"alloc_mem_mb"`
	NumGC                uint32  `json:"num_gc"`
	CPUPercent           float64 `json:"cpu_percent"`
	RAMPercent           float32 `json:"ram_percent"`
	UptimeSeconds        int64   `json:"uptime_seconds"`
}

// MonitoringManager collects platform counters. Safe for concurrent use.
type MonitoringManager struct {
	log     *slog.Logger
	started time.Time

	chatsCreated         uint64
	messagesStored       uint64
	generationsStarted   uint64
	generationsFinalized uint64
	generationsFailed    uint64
	streamAttaches       uint64
	titlesSet            uint64
	searchQueries        uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, started: time.Now()}
}

func (mm *MonitoringManager) IncrChatsCreated() {
	atomic.AddUint64(&mm.chatsCreated, 1)
}

func (mm *MonitoringManager) IncrMessagesStored() {
	atomic.AddUint64(&mm.messagesStored, 1)
}

func (mm *MonitoringManager) IncrGenerationsStarted() {
	atomic.AddUint64(&mm.generationsStarted, 1)
}

func (mm *MonitoringManager) IncrGenerationsFinalized() {
	atomic.AddUint64(&mm.generationsFinalized, 1)
}

func (mm *MonitoringManager) IncrGenerationsFailed() {
	atomic.AddUint64(&mm.generationsFailed, 1)
}

func (mm *MonitoringManager) IncrStreamAttaches() {
	atomic.AddUint64(&mm.streamAttaches, 1)
}

func (mm *MonitoringManager) IncrTitlesSet() {
	atomic.AddUint64(&mm.titlesSet, 1)
}

func (mm *MonitoringManager) IncrSearchQueries() {
	atomic.AddUint64(&mm.searchQueries, 1)
}

// Snapshot reads every counter plus the process health of the server itself.
// Process probing failures degrade to zero values instead of failing the call.
func (mm *MonitoringManager) Snapshot() Stats {
	stats := Stats{
		ChatsCreated:         atomic.LoadUint64(&mm.chatsCreated),
		MessagesStored:       atomic.LoadUint64(&mm.messagesStored),
		GenerationsStarted:   atomic.LoadUint64(&mm.generationsStarted),
		GenerationsFinalized: atomic.LoadUint64(&mm.generationsFinalized),
		GenerationsFailed:    atomic.LoadUint64(&mm.generationsFailed),
		StreamAttaches:       atomic.LoadUint64(&mm.streamAttaches),
		TitlesSet:            atomic.LoadUint64(&mm.titlesSet),
		SearchQueries:        atomic.LoadUint64(&mm.searchQueries),
		UptimeSeconds:        int64(time.Since(mm.started).Seconds()),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		mm.log.Debug("Error while retrieving own process", "err", err)
		return stats
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	} else {
		mm.log.Debug("Error while finding process cpu usage", "err", err)
	}
	if ram, err := p.MemoryPercent(); err == nil {
		stats.RAMPercent = ram
	} else {
		mm.log.Debug("Error while finding process ram usage", "err", err)
	}
	return stats
}
