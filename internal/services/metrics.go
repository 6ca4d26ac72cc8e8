package services

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

type MetricSample struct {
	CapturedAt        time.Time `db:"captured_at" json:"capturedAt"`
	ProcessRSSBytes   int64     `db:"process_rss_bytes" json:"processRssBytes"`
	SystemMemoryTotal int64     `db:"system_memory_total_bytes" json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `db:"system_memory_used_bytes" json:"systemMemoryUsedBytes"`
	DiskTotalBytes    int64     `db:"disk_total_bytes" json:"diskTotalBytes"`
	DiskUsedBytes     int64     `db:"disk_used_bytes" json:"diskUsedBytes"`
	ProcessCPULoad    float64   `db:"process_cpu_load" json:"processCpuLoad"`
	SystemCPULoad     float64   `db:"system_cpu_load" json:"systemCpuLoad"`
}

// SampleHost reads process and host usage. Probes that fail leave their
// fields at zero; a sample is always returned.
func SampleHost(ctx context.Context, diskPath string) MetricSample {
	sample := MetricSample{CapturedAt: time.Now().UTC()}
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.SystemMemoryTotal = int64(memStat.Total)
		sample.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		diskStat, err = disk.UsageWithContext(ctx, "/")
	}
	if err == nil {
		sample.DiskTotalBytes = int64(diskStat.Total)
		sample.DiskUsedBytes = int64(diskStat.Used)
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfoWithContext(ctx); err == nil && rss != nil {
			sample.ProcessRSSBytes = int64(rss.RSS)
		}
		if perc, err := proc.CPUPercentWithContext(ctx); err == nil {
			sample.ProcessCPULoad = perc / 100.0
		}
	}
	if perc, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(perc) > 0 {
		sample.SystemCPULoad = perc[0] / 100.0
	}
	return sample
}

func SaveMetricSample(ctx context.Context, database *sqlx.DB, sample MetricSample) error {
	_, err := database.ExecContext(ctx, `
INSERT INTO server_metric_samples (
  id, captured_at, process_rss_bytes, system_memory_total_bytes, system_memory_used_bytes,
  disk_total_bytes, disk_used_bytes, process_cpu_load, system_cpu_load
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, uuid.NewString(), sample.CapturedAt, sample.ProcessRSSBytes, sample.SystemMemoryTotal, sample.SystemMemoryUsed,
		sample.DiskTotalBytes, sample.DiskUsedBytes, sample.ProcessCPULoad, sample.SystemCPULoad)
	return WrapError(err, "insert metric sample")
}

// LatestMetrics returns up to limit samples, oldest first.
func LatestMetrics(ctx context.Context, database *sqlx.DB, limit int) ([]MetricSample, error) {
	rows := []MetricSample{}
	if err := database.SelectContext(ctx, &rows, `
SELECT captured_at, process_rss_bytes, system_memory_total_bytes, system_memory_used_bytes,
       disk_total_bytes, disk_used_bytes, process_cpu_load, system_cpu_load
FROM server_metric_samples
ORDER BY captured_at DESC
LIMIT $1
`, limit); err != nil {
		return nil, WrapError(err, "list metric samples")
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// MetricsRecorder samples the host on a fixed interval, stores each sample
// and pushes it to the hub.
type MetricsRecorder struct {
	DB       *sqlx.DB
	Hub      *Hub
	DiskPath string
	Interval time.Duration
	Sample   func(ctx context.Context, diskPath string) MetricSample
	Logger   *zap.Logger
}

func (r *MetricsRecorder) RecordOnce(ctx context.Context) (MetricSample, error) {
	sample := r.Sample
	if sample == nil {
		sample = SampleHost
	}
	s := sample(ctx, r.DiskPath)
	if err := SaveMetricSample(ctx, r.DB, s); err != nil {
		return MetricSample{}, err
	}
	r.Hub.Broadcast(s)
	return s, nil
}

func (r *MetricsRecorder) Run(ctx context.Context) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RecordOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("metrics sample failed", zap.Error(err))
			}
		}
	}
}
