// Package speed implements the cumulative-byte-counter speed tracker
// from spec.md §4.9: a thread-safe total plus anti-fluctuation periodic
// sampling, grounded on the atomic-counter/sliding-window accounting in
// the teacher's ActiveTask (internal/engine/concurrent/task.go), trimmed
// to the simpler cumulative-counter contract this spec specifies.
package speed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rangedl/rangedl/internal/config"
)

// Tracker accumulates reported bytes and produces periodic, formatted
// speed samples.
type Tracker struct {
	totalBytes atomic.Int64

	mu              sync.Mutex
	lastSampleBytes int64
	lastSampleTime  time.Time
	sampleFloor     time.Duration

	monMu     sync.Mutex
	monCancel context.CancelFunc
}

// New builds a Tracker. The anti-fluctuation minimum interval between
// samples comes from cfg (spec's 500 ms default).
func New(cfg *config.RuntimeConfig) *Tracker {
	return &Tracker{
		lastSampleTime: time.Now(),
		sampleFloor:    cfg.GetSpeedSampleFloor(),
	}
}

// ReportBytes atomically adds n to the cumulative total.
func (t *Tracker) ReportBytes(n int64) {
	t.totalBytes.Add(n)
}

// TotalBytes returns the cumulative total reported so far.
func (t *Tracker) TotalBytes() int64 {
	return t.totalBytes.Load()
}

// GetSpeedBytesPerSecond returns the instantaneous speed since the last
// sample, or 0 if called within the anti-fluctuation floor of the
// previous sample.
func (t *Tracker) GetSpeedBytesPerSecond() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastSampleTime)
	if elapsed < t.sampleFloor {
		return 0
	}

	total := t.totalBytes.Load()
	delta := total - t.lastSampleBytes
	speed := float64(delta) / elapsed.Seconds()

	t.lastSampleBytes = total
	t.lastSampleTime = now
	return speed
}

// GetSpeedFormatted scales the current speed to B/s, KiB/s, or MiB/s
// using 1024-base units. Never returns an empty string.
func (t *Tracker) GetSpeedFormatted() string {
	return FormatBytesPerSecond(t.GetSpeedBytesPerSecond())
}

// StartMonitoring schedules a periodic callback emitting formatted speed
// samples every interval. Calling it again while already active is a
// no-op, per spec.md §4.9.
func (t *Tracker) StartMonitoring(interval time.Duration, onSample func(formatted string, bytesPerSecond float64)) {
	t.monMu.Lock()
	defer t.monMu.Unlock()
	if t.monCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.monCancel = func() {
		cancel()
		<-done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bps := t.GetSpeedBytesPerSecond()
				if onSample != nil {
					onSample(FormatBytesPerSecond(bps), bps)
				}
			}
		}
	}()
}

// StopMonitoring cancels the periodic sampler, guaranteeing no further
// samples are emitted after it returns.
func (t *Tracker) StopMonitoring() {
	t.monMu.Lock()
	defer t.monMu.Unlock()
	if t.monCancel != nil {
		t.monCancel()
		t.monCancel = nil
	}
}

// Dispose stops monitoring. Safe to call multiple times.
func (t *Tracker) Dispose() {
	t.StopMonitoring()
}

// FormatBytesPerSecond renders a bytes/sec figure using 1024-base units.
func FormatBytesPerSecond(bps float64) string {
	const unit = 1024.0
	switch {
	case bps < unit:
		return fmt.Sprintf("%.0f B/s", bps)
	case bps < unit*unit:
		return fmt.Sprintf("%.2f KiB/s", bps/unit)
	default:
		return fmt.Sprintf("%.2f MiB/s", bps/(unit*unit))
	}
}
