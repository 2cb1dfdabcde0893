package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// RunBuffer batches alert runs for a RunSink. It flushes on either batch size
// or time interval, whichever comes first, and drops the oldest runs when the
// buffer is full.
type RunBuffer struct {
	sink          RunSink
	batchSize     int
	flushInterval time.Duration
	maxSize       int

	mu       sync.Mutex
	buffer   []*models.AlertHistory
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopped  atomic.Bool
	dropped  atomic.Int64
	flushed  atomic.Int64
	inserted atomic.Int64
}

// RunBufferConfig holds RunBuffer configuration.
type RunBufferConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxSize       int
}

// NewRunBuffer creates a buffer and starts its flush loop.
func NewRunBuffer(sink RunSink, config *RunBufferConfig) *RunBuffer {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 10 * time.Second
	}
	if config.MaxSize == 0 {
		config.MaxSize = 10000
	}

	b := &RunBuffer{
		sink:          sink,
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		maxSize:       config.MaxSize,
		buffer:        make([]*models.AlertHistory, 0, config.BatchSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	go b.flushLoop()
	return b
}

// InsertRuns queues runs. It satisfies RunSink so the buffer can stand in for
// the sink it wraps.
func (b *RunBuffer) InsertRuns(_ context.Context, runs []*models.AlertHistory) error {
	if b.stopped.Load() {
		return nil
	}

	b.mu.Lock()
	if newLen := len(b.buffer) + len(runs); newLen > b.maxSize {
		toDrop := newLen - b.maxSize
		if toDrop >= len(b.buffer) {
			b.dropped.Add(int64(len(b.buffer)))
			b.buffer = b.buffer[:0]
			drop := len(runs) - min(b.maxSize, len(runs))
			b.dropped.Add(int64(drop))
			runs = runs[drop:]
		} else {
			b.dropped.Add(int64(toDrop))
			b.buffer = b.buffer[toDrop:]
		}
		log.Printf("warning: run buffer overflow, dropped %d runs", toDrop)
	}
	b.buffer = append(b.buffer, runs...)
	shouldFlush := len(b.buffer) >= b.batchSize
	b.mu.Unlock()

	if shouldFlush {
		return b.Flush()
	}
	return nil
}

// Flush forces a flush of the current buffer. Runs are put back on failure.
func (b *RunBuffer) Flush() error {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}
	toFlush := b.buffer
	b.buffer = make([]*models.AlertHistory, 0, b.batchSize)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.sink.InsertRuns(ctx, toFlush); err != nil {
		b.mu.Lock()
		b.buffer = append(toFlush, b.buffer...)
		if len(b.buffer) > b.maxSize {
			excess := len(b.buffer) - b.maxSize
			b.dropped.Add(int64(excess))
			b.buffer = b.buffer[excess:]
		}
		b.mu.Unlock()
		return err
	}

	b.flushed.Add(1)
	b.inserted.Add(int64(len(toFlush)))
	return nil
}

func (b *RunBuffer) flushLoop() {
	defer close(b.doneCh)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				metrics.SinkErrors.Inc()
				log.Printf("run buffer flush error: %v", err)
			}
			b.reportMetrics()
		case <-b.stopCh:
			if err := b.Flush(); err != nil {
				log.Printf("run buffer final flush error: %v", err)
			}
			return
		}
	}
}

// Close stops the flush loop after a final flush.
func (b *RunBuffer) Close() error {
	if b.stopped.Swap(true) {
		return nil
	}
	close(b.stopCh)
	<-b.doneCh
	return nil
}

func (b *RunBuffer) reportMetrics() {
	stats := b.Stats()
	metrics.SinkPending.Set(float64(stats.Pending))
	metrics.SinkDroppedTotal.Set(float64(stats.Dropped))
}

// Stats returns buffer statistics.
func (b *RunBuffer) Stats() RunBufferStats {
	b.mu.Lock()
	pending := len(b.buffer)
	b.mu.Unlock()

	return RunBufferStats{
		Pending:  pending,
		Dropped:  b.dropped.Load(),
		Flushed:  b.flushed.Load(),
		Inserted: b.inserted.Load(),
	}
}

// RunBufferStats contains buffer statistics.
type RunBufferStats struct {
	Pending  int
	Dropped  int64
	Flushed  int64
	Inserted int64
}
