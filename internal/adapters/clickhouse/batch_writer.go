package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// BatchWriter buffers telemetry rows and flushes them in batches, on size
// or on a timer. Flush failures are logged and the batch is dropped: the
// warehouse never blocks or fails the product path.
type BatchWriter struct {
	flush    func(context.Context, []interface{}) error
	buffer   []interface{}
	mu       sync.Mutex
	maxBatch int
	maxWait  time.Duration
	cancel   context.CancelFunc
	done     <-chan struct{}
	wg       sync.WaitGroup
}

// NewBatchWriter creates a writer flushing through the given function
func NewBatchWriter(maxBatch int, maxWait time.Duration, flush func(context.Context, []interface{}) error) *BatchWriter {
	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		flush:    flush,
		buffer:   make([]interface{}, 0, maxBatch),
		maxBatch: maxBatch,
		maxWait:  maxWait,
		cancel:   cancel,
		done:     ctx.Done(),
	}

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Add buffers one row, flushing when the batch is full
func (bw *BatchWriter) Add(record interface{}) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, record)
	full := len(bw.buffer) >= bw.maxBatch
	bw.mu.Unlock()

	if full {
		bw.flushNow()
	}
}

func (bw *BatchWriter) autoFlush() {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxWait)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bw.flushNow()
		case <-bw.done:
			// Final flush before exit
			bw.flushNow()
			return
		}
	}
}

func (bw *BatchWriter) flushNow() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	toWrite := make([]interface{}, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.mu.Unlock()

	// The final flush runs after cancel, so the timeout cannot hang
	// off the writer context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bw.flush(ctx, toWrite); err != nil {
		logger.Error("failed to flush telemetry batch",
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed telemetry batch",
		zap.Int("records", len(toWrite)),
	)
}

// Close stops the writer and flushes remaining rows
func (bw *BatchWriter) Close() error {
	bw.cancel()
	bw.wg.Wait()
	return nil
}

// NodeEventBatchWriter buffers workflow trace rows
type NodeEventBatchWriter struct {
	*BatchWriter
}

// NewNodeEventBatchWriter creates a batch writer for node events
func NewNodeEventBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *NodeEventBatchWriter {
	flush := func(ctx context.Context, records []interface{}) error {
		events := make([]models.AgentLog, len(records))
		for i, record := range records {
			events[i] = record.(models.AgentLog)
		}
		return repo.SaveNodeEvents(ctx, events)
	}

	return &NodeEventBatchWriter{BatchWriter: NewBatchWriter(maxBatch, maxWait, flush)}
}

// SaveAgentLogs buffers one workflow trace. It satisfies the engine's
// trace sink contract and never fails; rows reach the warehouse on the
// next flush.
func (w *NodeEventBatchWriter) SaveAgentLogs(ctx context.Context, logs []models.AgentLog) error {
	for _, entry := range logs {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		w.Add(entry)
	}
	return nil
}

// UsageBatchWriter buffers generative call rows
type UsageBatchWriter struct {
	*BatchWriter
}

// NewUsageBatchWriter creates a batch writer for LLM usage
func NewUsageBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *UsageBatchWriter {
	flush := func(ctx context.Context, records []interface{}) error {
		rows := make([]models.LLMUsage, len(records))
		for i, record := range records {
			rows[i] = record.(models.LLMUsage)
		}
		return repo.SaveLLMUsage(ctx, rows)
	}

	return &UsageBatchWriter{BatchWriter: NewBatchWriter(maxBatch, maxWait, flush)}
}

// AddLLMUsage buffers one usage row
func (w *UsageBatchWriter) AddLLMUsage(u models.LLMUsage) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	w.Add(u)
}
