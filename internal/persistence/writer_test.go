package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/metrics"
)

type fakeEventSink struct {
	mu       sync.Mutex
	calls    int
	failN    int // fail the first N calls
	received [][]domain.IoTEvent
	name     string
	order    *[]string // when set, name is appended on every call
}

func (f *fakeEventSink) WriteBatch(ctx context.Context, events []domain.IoTEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	if f.calls <= f.failN {
		return errors.New("write failed")
	}
	f.received = append(f.received, events)
	return nil
}

type fakeGateSink struct {
	mu       sync.Mutex
	calls    int
	received [][]domain.GateEvent
	name     string
	order    *[]string // when set, name is appended on every call
}

func (f *fakeGateSink) WriteBatch(ctx context.Context, events []domain.GateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	f.received = append(f.received, events)
	return nil
}

func newTestWriter(eventLog, timeSeries eventSink, gate gateSink) *BatchWriter {
	return NewBatchWriter(eventLog, timeSeries, gate, 10, time.Millisecond, metrics.New("test_"+randSuffix(), ""))
}

var suffixCounter int

func randSuffix() string {
	suffixCounter++
	return string(rune('a' + suffixCounter%26))
}

func TestBatchWriter_FlushesEventsToBothSinks(t *testing.T) {
	eventLog := &fakeEventSink{}
	timeSeries := &fakeEventSink{}
	gate := &fakeGateSink{}
	w := newTestWriter(eventLog, timeSeries, gate)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, w.Enqueue(context.Background(), Batch{Events: []domain.IoTEvent{sampleEvent()}}))

	cancel()
	w.Wait()

	eventLog.mu.Lock()
	defer eventLog.mu.Unlock()
	assert.Equal(t, 1, eventLog.calls)
	timeSeries.mu.Lock()
	defer timeSeries.mu.Unlock()
	assert.Equal(t, 1, timeSeries.calls)
}

func TestBatchWriter_WritesGateEventsBeforeEventLog(t *testing.T) {
	var order []string
	eventLog := &fakeEventSink{name: "event_log", order: &order}
	timeSeries := &fakeEventSink{name: "timeseries", order: &order}
	gate := &fakeGateSink{name: "gate_events", order: &order}
	w := newTestWriter(eventLog, timeSeries, gate)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, w.Enqueue(context.Background(), Batch{
		Events:     []domain.IoTEvent{sampleEvent()},
		GateEvents: []domain.GateEvent{sampleGateEvent()},
	}))

	cancel()
	w.Wait()

	gate.mu.Lock()
	defer gate.mu.Unlock()
	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, []string{"gate_events", "event_log", "timeseries"}, order)
}

func TestBatchWriter_RetriesOnceThenSucceeds(t *testing.T) {
	eventLog := &fakeEventSink{failN: 1}
	timeSeries := &fakeEventSink{}
	gate := &fakeGateSink{}
	w := newTestWriter(eventLog, timeSeries, gate)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, w.Enqueue(context.Background(), Batch{Events: []domain.IoTEvent{sampleEvent()}}))

	cancel()
	w.Wait()

	eventLog.mu.Lock()
	defer eventLog.mu.Unlock()
	assert.Equal(t, 2, eventLog.calls)
	assert.Len(t, eventLog.received, 1)
}

func TestBatchWriter_DropsBatchAfterRetryFails(t *testing.T) {
	eventLog := &fakeEventSink{failN: 99}
	timeSeries := &fakeEventSink{}
	gate := &fakeGateSink{}
	w := newTestWriter(eventLog, timeSeries, gate)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, w.Enqueue(context.Background(), Batch{Events: []domain.IoTEvent{sampleEvent()}}))

	cancel()
	w.Wait()

	eventLog.mu.Lock()
	defer eventLog.mu.Unlock()
	assert.Equal(t, 2, eventLog.calls)
	assert.Empty(t, eventLog.received)
}

func TestBatchWriter_EmptyBatchSkipsSinks(t *testing.T) {
	eventLog := &fakeEventSink{}
	timeSeries := &fakeEventSink{}
	gate := &fakeGateSink{}
	w := newTestWriter(eventLog, timeSeries, gate)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, w.Enqueue(context.Background(), Batch{}))

	cancel()
	w.Wait()

	eventLog.mu.Lock()
	defer eventLog.mu.Unlock()
	assert.Equal(t, 0, eventLog.calls)
}
