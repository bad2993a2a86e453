package clickhouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureFlush struct {
	mu      sync.Mutex
	batches [][]interface{}
	err     error
}

func (c *captureFlush) flush(ctx context.Context, records []interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := make([]interface{}, len(records))
	copy(batch, records)
	c.batches = append(c.batches, batch)
	return c.err
}

func (c *captureFlush) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *captureFlush) batch(i int) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[i]
}

func (c *captureFlush) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func TestBatchWriterFlushesWhenFull(t *testing.T) {
	capture := &captureFlush{}
	bw := NewBatchWriter(3, time.Hour, capture.flush)
	defer bw.Close()

	bw.Add("a")
	bw.Add("b")
	if capture.count() != 0 {
		t.Fatalf("Expected no flush below the batch size, got %d", capture.count())
	}

	bw.Add("c")
	if capture.count() != 1 {
		t.Fatalf("Expected one flush at the batch size, got %d", capture.count())
	}

	got := capture.batch(0)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Expected batch [a b c], got %v", got)
	}
}

func TestBatchWriterFlushesOnClose(t *testing.T) {
	capture := &captureFlush{}
	bw := NewBatchWriter(100, time.Hour, capture.flush)

	bw.Add("a")
	bw.Add("b")

	if err := bw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if capture.count() != 1 {
		t.Fatalf("Expected final flush on close, got %d", capture.count())
	}
	if got := capture.batch(0); len(got) != 2 {
		t.Errorf("Expected 2 buffered rows, got %d", len(got))
	}
}

func TestBatchWriterDropsFailedBatch(t *testing.T) {
	capture := &captureFlush{err: errors.New("warehouse down")}
	bw := NewBatchWriter(2, time.Hour, capture.flush)
	defer bw.Close()

	bw.Add("a")
	bw.Add("b")

	if capture.count() != 1 {
		t.Fatalf("Expected one attempted flush, got %d", capture.count())
	}

	// Failed rows are dropped, not retried
	capture.setErr(nil)
	bw.Add("c")
	bw.Add("d")

	if capture.count() != 2 {
		t.Fatalf("Expected a second flush, got %d", capture.count())
	}
	if got := capture.batch(1); len(got) != 2 || got[0] != "c" {
		t.Errorf("Expected batch [c d], got %v", got)
	}
}

func TestBatchWriterFlushesOnTimer(t *testing.T) {
	capture := &captureFlush{}
	bw := NewBatchWriter(100, 20*time.Millisecond, capture.flush)
	defer bw.Close()

	bw.Add("a")

	deadline := time.Now().Add(2 * time.Second)
	for capture.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected timer flush, none happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
