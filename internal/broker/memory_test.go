package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"market-relay/pkg/exception"
)

func TestMemoryKeepsSendOrder(t *testing.T) {
	m := NewMemory()
	var outcomes []Outcome
	for _, key := range []string{"AAPL", "MSFT", "AAPL"} {
		m.Send(t.Context(), Record{Topic: "trades", Key: key, Value: []byte(key)}, func(err error) {
			outcomes = append(outcomes, OutcomeOf(err))
		})
	}

	assert.Equal(t, []Outcome{Acked, Acked, Acked}, outcomes)
	require.Len(t, m.Records(), 3)
	assert.Len(t, m.ByKey("trades", "AAPL"), 2)
	assert.Empty(t, m.ByKey("quotes", "AAPL"))
}

func TestMemoryCustomAck(t *testing.T) {
	boom := errors.New("memory: rejected")
	m := NewMemory()
	m.Ack = func(rec Record, done func(error)) {
		if rec.Key == "BAD" {
			done(boom)
			return
		}
		done(nil)
	}

	var got error
	m.Send(t.Context(), Record{Topic: "trades", Key: "BAD"}, func(err error) { got = err })
	assert.True(t, errors.Is(got, boom))
	assert.Equal(t, Failed, OutcomeOf(got))
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close(t.Context()))

	var got error
	m.Send(t.Context(), Record{Topic: "trades", Key: "AAPL"}, func(err error) { got = err })
	assert.True(t, errors.Is(got, exception.ErrBrokerClosed))
	assert.Empty(t, m.Records())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "acked", Acked.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
