package persistence

import (
	"context"
	"time"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/apperror"
	"github.com/roieman/container-sim/pkg/logger"
	"github.com/roieman/container-sim/pkg/metrics"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// Batch is one tick's worth of telemetry, handed from the scheduler to the
// writer's queue. GateEvents must land before Events per spec.md §5's
// ordering guarantee, so WriteBatch flushes them first.
type Batch struct {
	Events     []domain.IoTEvent
	GateEvents []domain.GateEvent
}

// eventSink and gateSink let the writer treat the three stores
// uniformly for retry/backoff purposes.
type eventSink interface {
	WriteBatch(ctx context.Context, events []domain.IoTEvent) error
}

type gateSink interface {
	WriteBatch(ctx context.Context, events []domain.GateEvent) error
}

// BatchWriter drains a bounded queue of Batches and fans each one out to
// the event log, time-series, and gate-event sinks, per spec.md §4.5.
// The queue gives the scheduler backpressure: when it is full, Enqueue
// blocks, stalling tick processing rather than growing memory unbounded.
type BatchWriter struct {
	eventLog   eventSink
	timeSeries eventSink
	gateEvents gateSink

	queue   chan Batch
	backoff time.Duration
	metrics *metrics.Metrics

	done chan struct{}
}

// NewBatchWriter wires the three sinks with a queue of the given capacity
// and the retry backoff used between the first attempt and its single
// retry (spec.md §4.5: "retries the batch once with exponential backoff").
func NewBatchWriter(eventLog, timeSeries eventSink, gateEvents gateSink, queueCapacity int, backoff time.Duration, m *metrics.Metrics) *BatchWriter {
	if queueCapacity <= 0 {
		queueCapacity = 1000
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &BatchWriter{
		eventLog:   eventLog,
		timeSeries: timeSeries,
		gateEvents: gateEvents,
		queue:      make(chan Batch, queueCapacity),
		backoff:    backoff,
		metrics:    m,
		done:       make(chan struct{}),
	}
}

// Enqueue blocks until the batch is accepted or ctx is cancelled. This is
// the scheduler's only backpressure signal: a full queue means the
// writer cannot keep up, and the scheduler should stall rather than
// overrun memory.
func (w *BatchWriter) Enqueue(ctx context.Context, b Batch) error {
	select {
	case w.queue <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled, then drains whatever
// remains buffered before returning. Intended to run in its own
// goroutine for the lifetime of the process.
func (w *BatchWriter) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case b := <-w.queue:
			w.flush(context.Background(), b)
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *BatchWriter) drain() {
	for {
		select {
		case b := <-w.queue:
			w.flush(context.Background(), b)
		default:
			return
		}
	}
}

// Wait blocks until Run has returned and the queue has been fully drained.
func (w *BatchWriter) Wait() {
	<-w.done
}

func (w *BatchWriter) flush(ctx context.Context, b Batch) {
	ctx, span := telemetry.StartSpan(ctx, "persistence.BatchWriter", "flush")
	defer span.End()

	if len(b.GateEvents) > 0 {
		w.writeWithRetry(ctx, "gate_events", func(ctx context.Context) error {
			return w.gateEvents.WriteBatch(ctx, b.GateEvents)
		})
	}

	if len(b.Events) == 0 {
		return
	}

	w.writeWithRetry(ctx, "event_log", func(ctx context.Context) error {
		return w.eventLog.WriteBatch(ctx, b.Events)
	})
	w.writeWithRetry(ctx, "timeseries", func(ctx context.Context) error {
		return w.timeSeries.WriteBatch(ctx, b.Events)
	})
}

// writeWithRetry attempts write once, retries once after backoff on
// failure, and drops the batch (logging and counting it) if the retry
// also fails. Duplicate rows on a retried event_log write are harmless:
// the table's (container_id, event_time) uniqueness makes every insert
// idempotent.
func (w *BatchWriter) writeWithRetry(ctx context.Context, sink string, write func(context.Context) error) {
	start := time.Now()
	err := write(ctx)
	if err == nil {
		w.observeDuration(sink, start)
		return
	}

	logger.Warn("batch write failed, retrying", "sink", sink, "error", err)
	time.Sleep(w.backoff)

	start = time.Now()
	if err := write(ctx); err != nil {
		dropErr := apperror.Wrap(err, apperror.CodeWriteTimeout, "batch write failed after retry, dropping batch").
			WithDetails(map[string]any{"sink": sink})
		logger.Error("batch write failed after retry, dropping batch", "sink", sink, "error", dropErr)
		if w.metrics != nil {
			w.metrics.BatchWriteFailures.WithLabelValues(sink).Inc()
		}
		return
	}
	w.observeDuration(sink, start)
}

func (w *BatchWriter) observeDuration(sink string, start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.BatchWriteDuration.WithLabelValues(sink).Observe(time.Since(start).Seconds())
}
