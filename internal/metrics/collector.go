// Package metrics logs periodic system resource snapshots during the long
// pipeline phases, so a stalled planet build can be told apart from an
// I/O-bound one.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Collector periodically samples and logs system metrics.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	lastDiskStats map[string]disk.IOCountersStat
	lastDiskTime  time.Time
}

// NewCollector creates a collector. Intervals under a second fall back to
// thirty seconds.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start samples until the context is cancelled. Run it in its own
// goroutine alongside the pipeline.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// First sample initializes the disk throughput baseline.
	c.collect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	fields := make([]zap.Field, 0, 6)

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		fields = append(fields, zap.Float64("cpu_pct", round1(percents[0])))
	}
	if c.proc != nil {
		if p, err := c.proc.CPUPercent(); err == nil {
			fields = append(fields, zap.Float64("proc_cpu_pct", round1(p)))
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields,
			zap.Float64("mem_used_gb", round1(float64(vm.Used)/(1<<30))),
			zap.Float64("mem_pct", round1(vm.UsedPercent)))
	}

	if counters, err := disk.IOCounters(); err == nil {
		now := time.Now()
		if c.lastDiskStats != nil {
			elapsed := now.Sub(c.lastDiskTime).Seconds()
			var readBytes, writeBytes uint64
			for name, cur := range counters {
				if prev, ok := c.lastDiskStats[name]; ok {
					readBytes += cur.ReadBytes - prev.ReadBytes
					writeBytes += cur.WriteBytes - prev.WriteBytes
				}
			}
			if elapsed > 0 {
				fields = append(fields,
					zap.Float64("disk_read_mbps", round1(float64(readBytes)/elapsed/(1<<20))),
					zap.Float64("disk_write_mbps", round1(float64(writeBytes)/elapsed/(1<<20))))
			}
		}
		c.lastDiskStats = counters
		c.lastDiskTime = now
	}

	c.logger.Info("System metrics", fields...)
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
