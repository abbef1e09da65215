package obs

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/pkg/atomics"

	"market-relay/internal/broker"
	"market-relay/internal/model"
)

var eventTypes = [...]model.EventType{
	model.EventTrade,
	model.EventQuote,
	model.EventSecondAggregate,
	model.EventMinuteAggregate,
	model.EventStatus,
}

func eventIndex(ev model.EventType) int {
	for i, e := range eventTypes {
		if e == ev {
			return i
		}
	}
	return -1
}

// Metrics collects lightweight relay counters and latency stats. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	received        [len(eventTypes)]uint64
	decodeErrors    uint64
	serializeErrors uint64
	acked           uint64
	failed          uint64
	reconnects      uint64
	commands        uint64
	inFlight        int64

	state atomics.Value[string]

	ackLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Received        map[model.EventType]uint64
	DecodeErrors    uint64
	SerializeErrors uint64
	Acked           uint64
	Failed          uint64
	Reconnects      uint64
	Commands        uint64
	InFlight        int64
	State           string
	AckLatency      LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveMessage counts a decoded upstream record.
func (m *Metrics) ObserveMessage(msg model.Message) {
	if m == nil || msg == nil {
		return
	}
	if idx := eventIndex(msg.EventType()); idx >= 0 {
		atomic.AddUint64(&m.received[idx], 1)
	}
}

func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors, 1)
}

func (m *Metrics) IncSerializeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.serializeErrors, 1)
}

func (m *Metrics) IncCommand() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.commands, 1)
}

// BeginSend marks a record as handed to the broker.
func (m *Metrics) BeginSend() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.inFlight, 1)
}

// EndSend resolves a record started with BeginSend.
func (m *Metrics) EndSend(outcome broker.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.inFlight, -1)
	if outcome != broker.Acked {
		atomic.AddUint64(&m.failed, 1)
		return
	}
	atomic.AddUint64(&m.acked, 1)
	m.ackLatency.Observe(elapsed)
}

// ObserveState records a connection state change by name. Leaving
// "streaming" for "reconnecting" counts one reconnect; retries inside the
// same reconnect do not.
func (m *Metrics) ObserveState(from, to string) {
	if m == nil {
		return
	}
	m.state.Store(to)
	if from == "streaming" && to == "reconnecting" {
		atomic.AddUint64(&m.reconnects, 1)
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	received := make(map[model.EventType]uint64, len(eventTypes))
	for i, ev := range eventTypes {
		if v := atomic.LoadUint64(&m.received[i]); v > 0 {
			received[ev] = v
		}
	}
	return Snapshot{
		Received:        received,
		DecodeErrors:    atomic.LoadUint64(&m.decodeErrors),
		SerializeErrors: atomic.LoadUint64(&m.serializeErrors),
		Acked:           atomic.LoadUint64(&m.acked),
		Failed:          atomic.LoadUint64(&m.failed),
		Reconnects:      atomic.LoadUint64(&m.reconnects),
		Commands:        atomic.LoadUint64(&m.commands),
		InFlight:        atomic.LoadInt64(&m.inFlight),
		State:           m.state.Load(),
		AckLatency:      m.ackLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	return LatencySnapshot{
		Count: count,
		Sum:   time.Duration(sum),
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
