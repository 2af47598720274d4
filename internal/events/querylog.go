package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

// BatchPublisher writes a batch of events. *kafka.Producer implements it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// QueryLog buffers Query events and publishes them in batches, when the
// buffer reaches the batch size or on every flush interval. Failed batches
// are requeued up to three batches' worth; older overflow is dropped.
type QueryLog struct {
	publisher     BatchPublisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	flushing      sync.Mutex
	done          chan struct{}
}

func NewQueryLog(publisher BatchPublisher, batchSize int, flushInterval time.Duration) *QueryLog {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &QueryLog{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "query-log"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It returns at once; the loop ends, after a
// final flush, when ctx is cancelled.
func (q *QueryLog) Start(ctx context.Context) {
	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				q.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	q.logger.Info("query log started", "batch_size", q.batchSize, "flush_interval", q.flushInterval)
}

// Track buffers one event. A full buffer is flushed in the background.
func (q *QueryLog) Track(event Query) {
	q.mu.Lock()
	q.buffer = append(q.buffer, kafka.Event{Key: event.Generation, Value: event})
	full := len(q.buffer) >= q.batchSize
	q.mu.Unlock()
	if full {
		go q.Flush(context.Background())
	}
}

// Close waits for the flush loop started by Start to finish.
func (q *QueryLog) Close() {
	<-q.done
}

func (q *QueryLog) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Flush publishes everything buffered.
func (q *QueryLog) Flush(ctx context.Context) {
	q.flushing.Lock()
	defer q.flushing.Unlock()

	q.mu.Lock()
	if len(q.buffer) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.buffer
	q.buffer = make([]kafka.Event, 0, q.batchSize)
	q.mu.Unlock()

	if err := q.publisher.PublishBatch(ctx, batch); err != nil {
		q.logger.Error("query log flush failed", "events", len(batch), "error", err)
		q.mu.Lock()
		q.buffer = append(batch, q.buffer...)
		if limit := q.batchSize * 3; len(q.buffer) > limit {
			dropped := len(q.buffer) - limit
			q.buffer = q.buffer[dropped:]
			q.logger.Warn("query log overflow, events dropped", "dropped", dropped)
		}
		q.mu.Unlock()
		return
	}
	q.logger.Debug("query log flushed", "events", len(batch))
}
