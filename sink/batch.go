package sink

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

const DefaultBatchSize = 5000

// Batches yields successive chunks of at most n records. An empty chunk ends
// the sequence. A sequence can be resumed between chunks but not inside one.
type Batches[T any] func(n int) []T

// FromSlice serves an in-memory slice as a batch sequence.
func FromSlice[T any](items []T) Batches[T] {
	return func(n int) []T {
		if n > len(items) {
			n = len(items)
		}
		chunk := items[:n]
		items = items[n:]
		return chunk
	}
}

// Writer drains batch sequences into stores in bounded chunks, one bulk call
// per chunk. Committed chunks stay committed when a later chunk fails.
type Writer struct {
	batchSize int
	limiter   ratelimit.Limiter
	throttled bool
	log       *log.Entry
}

func NewWriter(batchSize, qps int, logger *log.Entry) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	limiter := ratelimit.NewUnlimited()
	if qps > 0 {
		limiter = ratelimit.New(qps, ratelimit.WithoutSlack) // per second
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Writer{batchSize: batchSize, limiter: limiter, throttled: qps > 0, log: logger}
}

// take waits for the next write slot or for ctx to end, whichever is first.
func (w *Writer) take(ctx context.Context) error {
	if !w.throttled {
		return ctx.Err()
	}
	slot := make(chan struct{})
	go func() {
		w.limiter.Take()
		close(slot)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-slot:
		return ctx.Err()
	}
}

func (w *Writer) BatchSize() int {
	return w.batchSize
}

// WriteRows writes all rows without capturing IDs and returns the number of
// rows the store kept. Rows skipped on a unique key are not counted.
func WriteRows[T Row](ctx context.Context, w *Writer, store RelationalStore, t Table, next Batches[T]) (int64, error) {
	var stored int64
	err := drain(ctx, w, t.Name, next, func(ctx context.Context, chunk []T) error {
		n, err := store.Insert(ctx, t, rowValues(chunk))
		stored += n
		return err
	})
	return stored, err
}

// WriteRowsReturning writes all rows and returns their assigned IDs in
// submission order.
func WriteRowsReturning[T Row](ctx context.Context, w *Writer, store RelationalStore, t Table, next Batches[T]) ([]int64, error) {
	var ids []int64
	err := drain(ctx, w, t.Name, next, func(ctx context.Context, chunk []T) error {
		got, err := store.InsertReturning(ctx, t, rowValues(chunk))
		if err != nil {
			return err
		}
		if len(got) != len(chunk) {
			return fmt.Errorf("store returned %d ids for %d rows", len(got), len(chunk))
		}
		ids = append(ids, got...)
		return nil
	})
	return ids, err
}

// WriteDocuments writes all documents into a collection and returns how
// many were written.
func WriteDocuments[T Document](ctx context.Context, w *Writer, store DocumentStore, collection string, next Batches[T]) (int64, error) {
	var written int64
	err := drain(ctx, w, collection, next, func(ctx context.Context, chunk []T) error {
		docs := make([]Document, len(chunk))
		for i, d := range chunk {
			docs[i] = d
		}
		if err := store.InsertMany(ctx, collection, docs); err != nil {
			return err
		}
		written += int64(len(chunk))
		return nil
	})
	return written, err
}

func rowValues[T Row](chunk []T) [][]any {
	rows := make([][]any, len(chunk))
	for i, r := range chunk {
		rows[i] = r.Values()
	}
	return rows
}

// drain generates chunk N+1 while chunk N is being written.
func drain[T any](ctx context.Context, w *Writer, target string, next Batches[T], write func(context.Context, []T) error) error {
	prefetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks := prefetch(prefetchCtx, next, w.batchSize)

	var offset int64
	initTime := time.Now()
	prevTime := initTime
	for chunk := range chunks {
		err := w.take(ctx)
		if err == nil {
			err = write(ctx, chunk)
		}
		if err != nil {
			cancel()
			for range chunks {
			}
			return &ChunkError{Target: target, Offset: offset, Size: len(chunk), Err: err}
		}
		offset += int64(len(chunk))
		if time.Since(prevTime) >= 10*time.Second {
			w.log.WithFields(log.Fields{"target": target, "rows": offset}).
				Infof("Sent %d records in total (Elapsed: %s)", offset, time.Since(initTime).Round(time.Millisecond))
			prevTime = time.Now()
		}
	}
	if err := ctx.Err(); err != nil {
		return &ChunkError{Target: target, Offset: offset, Err: err}
	}
	return nil
}

func prefetch[T any](ctx context.Context, next Batches[T], size int) <-chan []T {
	out := make(chan []T, 1)
	go func() {
		defer close(out)
		for {
			chunk := next(size)
			if len(chunk) == 0 {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
	}()
	return out
}
