package broker

import "context"

// Record is one message addressed to a topic and partition key.
type Record struct {
	Topic string
	Key   string
	Value []byte
}

// Broker delivers records. Records sharing a key are delivered in the order
// Send was called for them.
type Broker interface {
	// Send initiates delivery of rec and returns without waiting for the
	// broker. done is called exactly once with nil on acknowledgment or the
	// delivery error.
	Send(ctx context.Context, rec Record, done func(error))

	// Close flushes buffered records and releases the client.
	Close(ctx context.Context) error
}

// Outcome is the final state of one Send.
type Outcome int

const (
	Acked Outcome = iota
	Failed
)

func OutcomeOf(err error) Outcome {
	if err != nil {
		return Failed
	}
	return Acked
}

func (o Outcome) String() string {
	switch o {
	case Acked:
		return "acked"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
