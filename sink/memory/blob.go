package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"learngen/sink"
)

type BlobSink struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures map[string]error
}

func NewBlobSink() *BlobSink {
	return &BlobSink{objects: make(map[string][]byte), failures: make(map[string]error)}
}

// FailPut makes every Put to path fail with err.
func (b *BlobSink) FailPut(path string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = err
}

func (b *BlobSink) Put(ctx context.Context, path string, body io.Reader, contentType string) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failures[path]; err != nil {
		return 0, sink.Unavailable("put "+path, err)
	}
	b.objects[path] = data
	return int64(len(data)), nil
}

// Object returns the stored bytes at path.
func (b *BlobSink) Object(path string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	return bytes.Clone(data), ok
}

func (b *BlobSink) Location(path string) string {
	return fmt.Sprintf("mem://%s", path)
}

func (b *BlobSink) Close() error {
	return nil
}
