package router

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"market-relay/internal/model"
	"market-relay/pkg/exception"
)

func TestClassifyEveryVariant(t *testing.T) {
	tests := []struct {
		name  string
		msg   model.Message
		topic string
		key   string
	}{
		{
			name:  "trade",
			msg:   model.Trade{Event: model.EventTrade, Symbol: "AAPL", Price: 1, Size: 1, Timestamp: 1},
			topic: TopicTrades,
			key:   "AAPL",
		},
		{
			name:  "quote",
			msg:   model.Quote{Event: model.EventQuote, Symbol: "MSFT", BidPrice: 1, AskPrice: 2},
			topic: TopicQuotes,
			key:   "MSFT",
		},
		{
			name:  "second aggregate",
			msg:   model.SecondAggregate{Event: model.EventSecondAggregate, Symbol: "TSLA", Volume: 3},
			topic: TopicSecondAggregates,
			key:   "TSLA",
		},
		{
			name:  "minute aggregate",
			msg:   model.MinuteAggregate{Event: model.EventMinuteAggregate, Symbol: "NVDA", Volume: 4},
			topic: TopicMinuteAggregates,
			key:   "NVDA",
		},
		{
			name:  "status",
			msg:   model.Status{Event: model.EventStatus, Status: model.StatusConnected, Message: "ok"},
			topic: TopicMeta,
			key:   StatusKey,
		},
		{
			name:  "fatal status",
			msg:   model.Status{Event: model.EventStatus, Status: model.StatusForceDisconnect},
			topic: TopicMeta,
			key:   StatusKey,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			route, err := Classify(tc.msg)
			require.NoError(t, err)
			assert.Equal(t, tc.topic, route.Topic)
			assert.Equal(t, tc.key, route.Key)

			decoded, err := model.DecodeMessage(route.Payload)
			require.NoError(t, err)
			assert.Equal(t, tc.msg, decoded)
		})
	}
}

func TestClassifyTradeScenario(t *testing.T) {
	msgs, errs := model.DecodeFrame([]byte(`{"ev":"T","sym":"AAPL","p":150.25,"s":100,"t":1690000000000}`))
	require.Empty(t, errs)
	require.Len(t, msgs, 1)

	route, err := Classify(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "trades", route.Topic)
	assert.Equal(t, "AAPL", route.Key)

	back, err := model.DecodeMessage(route.Payload)
	require.NoError(t, err)
	assert.Equal(t, msgs[0], back)
}

func TestPayloadStampsEventType(t *testing.T) {
	for _, msg := range []model.Message{
		model.Trade{Symbol: "AAPL", Price: 1, Size: 1, Timestamp: 1},
		model.Quote{Symbol: "MSFT", BidPrice: 1, AskPrice: 2},
		model.SecondAggregate{Symbol: "TSLA", Volume: 3},
		model.MinuteAggregate{Event: model.EventTrade, Symbol: "NVDA", Volume: 4},
		model.Status{Status: model.StatusConnected},
	} {
		payload, err := Payload(msg)
		require.NoError(t, err)

		decoded, err := model.DecodeMessage(payload)
		require.NoError(t, err, string(payload))
		assert.Equal(t, msg.EventType(), decoded.EventType())
		assert.Equal(t, Key(msg), Key(decoded))
	}
}

func TestPayloadSerializeFailureIsLocal(t *testing.T) {
	_, err := Classify(model.Trade{Event: model.EventTrade, Symbol: "AAPL", Price: math.NaN()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrSerialize))
}
