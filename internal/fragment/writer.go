package fragment

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// Sink is the single-record persistence operation the writer needs from
// the backing store. Insert must be idempotent for re-writes of the same
// (parent id, chunk index) pair so retrying a failed fragment can never
// duplicate a record.
type Sink interface {
	Insert(ctx context.Context, rec Record) error
}

// RetryConfig bounds the per-record retry loop inside a fragmented write.
type RetryConfig struct {
	MaxRetries      int           // retry attempts per record after the first
	InitialInterval time.Duration // first backoff interval
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns conservative defaults for store writes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Writer persists one chunked payload as N independent records: a primary
// carrying fragment 0 and the reassembly metadata, then one continuation
// per later fragment, in ascending index order. There is no cross-record
// transaction; a crash mid-sequence leaves a primary that declares more
// chunks than exist, which the reassembler degrades gracefully.
type Writer struct {
	sink   Sink
	retry  RetryConfig
	logger log.Logger
}

// NewWriter creates a writer over the given sink.
func NewWriter(sink Sink, retry RetryConfig, logger log.Logger) *Writer {
	return &Writer{sink: sink, retry: retry, logger: logger}
}

// Write persists the fragments of one payload. Fragment 0 becomes the
// primary record under parentID itself, content prefixed with the
// structural prefix (empty for none). Later fragments become continuation
// records with synthesized ids and the continuation role.
//
// Returns the written record ids in write order so callers can verify the
// count against the policy decision. On a mid-sequence failure the
// returned error is a *PartialWriteError naming the persisted and missing
// chunk indexes; already-written records are left in place.
func (w *Writer) Write(ctx context.Context, parentID, role string, fragments iter.Seq[string], prefix string) ([]string, error) {
	frags := slices.Collect(fragments)
	if len(frags) == 0 {
		panic("fragment: write called with no fragments")
	}
	total := len(frags)

	primary := Record{
		ID:          parentID,
		Role:        role,
		Content:     prefix + frags[0],
		ChunkIndex:  0,
		IsChunked:   true,
		TotalChunks: total,
	}
	if err := w.insertWithRetry(ctx, primary); err != nil {
		return nil, fmt.Errorf("writing primary record %s: %w", parentID, err)
	}

	ids := make([]string, 1, total)
	ids[0] = parentID

	for i := 1; i < total; i++ {
		rec := Record{
			ID:         ContinuationID(parentID, i),
			Role:       ContinuationRole(role),
			Content:    frags[i],
			ParentID:   parentID,
			ChunkIndex: i,
		}
		if err := w.insertWithRetry(ctx, rec); err != nil {
			return ids, &PartialWriteError{
				ParentID: parentID,
				Written:  indexRange(0, i),
				Missing:  indexRange(i, total),
				Err:      err,
			}
		}
		ids = append(ids, rec.ID)
	}

	w.logger.Debug("fragmented payload written",
		"parent_id", parentID,
		"total_chunks", total,
		"prefix_len", len(prefix),
	)
	return ids, nil
}

// insertWithRetry issues one store write with bounded exponential backoff.
// Every error is retried the same way: transient failures recover, and a
// permanent one just costs a couple of cheap idempotent re-inserts before
// surfacing.
func (w *Writer) insertWithRetry(ctx context.Context, rec Record) error {
	var lastErr error
	delay := w.retry.InitialInterval

	for attempt := 0; attempt <= w.retry.MaxRetries; attempt++ {
		err := w.sink.Insert(ctx, rec)
		if err == nil {
			if attempt > 0 {
				w.logger.Debug("fragment insert recovered",
					"record_id", rec.ID,
					"attempts", attempt+1,
				)
			}
			return nil
		}
		lastErr = err

		if attempt == w.retry.MaxRetries {
			break
		}

		w.logger.Debug("retrying fragment insert",
			"record_id", rec.ID,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, w.retry.MaxInterval)
		}
	}

	return fmt.Errorf("insert after %d retries: %w", w.retry.MaxRetries, lastErr)
}

// indexRange returns [lo, hi) as a slice.
func indexRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
