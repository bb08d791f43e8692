package store

import (
	"sync"
)

// DefaultHistorySize is used when NewMemoryStore is given a non-positive size.
const DefaultHistorySize = 100

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Events are kept in a fixed-size ring; once full, each append evicts the
// oldest event. Subscribers receive appends via buffered channels and miss
// events when their buffer is full.
type MemoryStore struct {
	mu     sync.RWMutex
	ring   []EventRecord
	next   int
	full   bool
	status PipelineStatus

	subscribers map[chan EventRecord]struct{}
	subMu       sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a [MemoryStore] retaining up to size events.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &MemoryStore{
		ring:        make([]EventRecord, size),
		status:      PipelineStatus{State: "idle"},
		subscribers: make(map[chan EventRecord]struct{}),
	}
}

// Capacity returns the maximum number of retained events.
func (m *MemoryStore) Capacity() int {
	return len(m.ring)
}

func (m *MemoryStore) Append(record EventRecord) {
	m.mu.Lock()
	m.ring[m.next] = record
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()

	m.notifySubscribers(record)
}

func (m *MemoryStore) Recent() []EventRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.full {
		return append([]EventRecord(nil), m.ring[:m.next]...)
	}

	out := make([]EventRecord, 0, len(m.ring))
	out = append(out, m.ring[m.next:]...)
	return append(out, m.ring[:m.next]...)
}

func (m *MemoryStore) SetStatus(status PipelineStatus) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *MemoryStore) Status() PipelineStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *MemoryStore) Subscribe() <-chan EventRecord {
	ch := make(chan EventRecord, subscriberBuffer)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *MemoryStore) Unsubscribe(ch <-chan EventRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers is non-blocking: a full subscriber buffer drops the event
// for that subscriber only.
func (m *MemoryStore) notifySubscribers(record EventRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
		}
	}
}
