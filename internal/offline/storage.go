package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Entry is one cached response.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// OK reports whether the entry holds a 2xx response.
func (e *Entry) OK() bool {
	return e.Status >= 200 && e.Status <= 299
}

// response builds a fresh *http.Response for req. Each call gets its own body.
func (e *Entry) response(req *http.Request, source string) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(SourceHeader, source)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Storage holds named cache buckets of entries. Implementations must be
// safe for concurrent use.
type Storage interface {
	// Open creates bucket when it does not exist yet.
	Open(ctx context.Context, bucket string) error
	// Buckets lists every bucket name, sorted.
	Buckets(ctx context.Context) ([]string, error)
	// Delete removes bucket and all its entries. It reports whether it existed.
	Delete(ctx context.Context, bucket string) (bool, error)
	// Get returns ErrNotCached when bucket or key is absent.
	Get(ctx context.Context, bucket, key string) (*Entry, error)
	Put(ctx context.Context, bucket, key string, e *Entry) error
}

// MemoryStorage keeps buckets in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*Entry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{buckets: make(map[string]map[string]*Entry)}
}

func (m *MemoryStorage) Open(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]*Entry)
	}
	return nil
}

func (m *MemoryStorage) Buckets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *MemoryStorage) Delete(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket]
	delete(m.buckets, bucket)
	return ok, nil
}

func (m *MemoryStorage) Get(_ context.Context, bucket, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.buckets[bucket][key]
	if !ok {
		return nil, ErrNotCached
	}
	return e, nil
}

// Put stores e, opening bucket implicitly.
func (m *MemoryStorage) Put(_ context.Context, bucket, key string, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]*Entry)
		m.buckets[bucket] = b
	}
	b[key] = e
	return nil
}
