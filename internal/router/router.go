package router

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"market-relay/internal/model"
	"market-relay/pkg/exception"
)

// Broker topics, one per message variant.
const (
	TopicTrades           = "trades"
	TopicQuotes           = "quotes"
	TopicSecondAggregates = "second-aggregates"
	TopicMinuteAggregates = "minute-aggregates"
	TopicMeta             = "meta"
)

// StatusKey is shared by every Status message so that status records keep
// their relative order on a partitioned-by-key broker.
const StatusKey = "status"

// Route is the destination and payload of one message.
type Route struct {
	Topic   string
	Key     string
	Payload []byte
}

// Topic returns the broker topic for msg.
func Topic(msg model.Message) string {
	switch msg.(type) {
	case model.Trade:
		return TopicTrades
	case model.Quote:
		return TopicQuotes
	case model.SecondAggregate:
		return TopicSecondAggregates
	case model.MinuteAggregate:
		return TopicMinuteAggregates
	default:
		return TopicMeta
	}
}

// Key returns the partition key for msg.
func Key(msg model.Message) string {
	if sym, ok := model.SymbolOf(msg); ok {
		return sym
	}
	return StatusKey
}

// Payload serializes msg to the JSON accepted by model.DecodeMessage. The
// "ev" field always matches the variant, whatever msg.Event holds.
func Payload(msg model.Message) ([]byte, error) {
	buf, err := sonic.ConfigStd.Marshal(withEvent(msg))
	if err != nil {
		return nil, errors.Wrapf(exception.ErrSerialize, "marshal %s: %v", msg.EventType(), err)
	}
	return buf, nil
}

func withEvent(msg model.Message) model.Message {
	switch m := msg.(type) {
	case model.Trade:
		m.Event = m.EventType()
		return m
	case model.Quote:
		m.Event = m.EventType()
		return m
	case model.SecondAggregate:
		m.Event = m.EventType()
		return m
	case model.MinuteAggregate:
		m.Event = m.EventType()
		return m
	case model.Status:
		m.Event = m.EventType()
		return m
	default:
		return msg
	}
}

// Classify computes the topic, key and payload for msg. The only failure is
// serialization, which is local to msg.
func Classify(msg model.Message) (Route, error) {
	payload, err := Payload(msg)
	if err != nil {
		return Route{}, err
	}
	return Route{
		Topic:   Topic(msg),
		Key:     Key(msg),
		Payload: payload,
	}, nil
}
