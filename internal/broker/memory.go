package broker

import (
	"context"
	"sync"

	"market-relay/pkg/exception"
)

// Memory is an in-process Broker. It keeps every record it is handed and
// acknowledges synchronously unless Ack is set.
type Memory struct {
	// Ack decides the outcome of a send. A nil Ack acknowledges everything.
	// It may block or hand done off to another goroutine.
	Ack func(rec Record, done func(error))

	mu      sync.Mutex
	records []Record
	closed  bool
}

var _ Broker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Send(_ context.Context, rec Record, done func(error)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		done(exception.ErrBrokerClosed)
		return
	}
	m.records = append(m.records, rec)
	ack := m.Ack
	m.mu.Unlock()

	if ack == nil {
		done(nil)
		return
	}
	ack(rec, done)
}

// Records returns a copy of everything sent so far, in send order.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// ByKey returns the records sent for topic and key, in send order.
func (m *Memory) ByKey(topic, key string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.Topic == topic && rec.Key == key {
			out = append(out, rec)
		}
	}
	return out
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
