package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a point-in-time view of the Go runtime, reported by /health
type RuntimeStats struct {
	Goroutines    int64     `json:"goroutines"`
	HeapAlloc     uint64    `json:"heap_alloc_bytes"`
	HeapSys       uint64    `json:"heap_sys_bytes"`
	GCCount       uint32    `json:"gc_count"`
	LastGCPause   string    `json:"last_gc_pause"`
	CPUCount      int       `json:"cpu_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// RuntimeCollector periodically records runtime gauges
type RuntimeCollector struct {
	startTime  time.Time
	interval   time.Duration
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	uptime     metric.Float64Gauge
	stopCh     chan struct{}
}

// NewRuntimeCollector creates a collector recording into meter every interval
func NewRuntimeCollector(meter metric.Meter, interval time.Duration) (*RuntimeCollector, error) {
	goroutines, err := meter.Int64Gauge("system_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return nil, fmt.Errorf("failed to create goroutine gauge: %w", err)
	}

	heapAlloc, err := meter.Int64Gauge("system_memory_usage_bytes",
		metric.WithDescription("Heap bytes allocated and in use"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("failed to create memory gauge: %w", err)
	}

	uptime, err := meter.Float64Gauge("system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create uptime gauge: %w", err)
	}

	return &RuntimeCollector{
		startTime:  time.Now(),
		interval:   interval,
		goroutines: goroutines,
		heapAlloc:  heapAlloc,
		uptime:     uptime,
		stopCh:     make(chan struct{}),
	}, nil
}

// Collect reads runtime statistics and records them
func (rc *RuntimeCollector) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines:    int64(runtime.NumGoroutine()),
		HeapAlloc:     mem.HeapAlloc,
		HeapSys:       mem.HeapSys,
		GCCount:       mem.NumGC,
		LastGCPause:   time.Duration(mem.PauseNs[(mem.NumGC+255)%256]).String(),
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(rc.startTime).Seconds(),
		Timestamp:     time.Now(),
	}

	rc.goroutines.Record(ctx, stats.Goroutines)
	rc.heapAlloc.Record(ctx, int64(stats.HeapAlloc))
	rc.uptime.Record(ctx, stats.UptimeSeconds)

	return stats
}

// Start collects until ctx is cancelled or Stop is called
func (rc *RuntimeCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			rc.Collect(ctx)
		case <-rc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops periodic collection
func (rc *RuntimeCollector) Stop() {
	close(rc.stopCh)
}
