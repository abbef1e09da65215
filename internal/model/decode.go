package model

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"market-relay/pkg/exception"
)

type envelope struct {
	Event EventType `json:"ev"`
}

// DecodeFrame decodes one upstream frame, which is either a single record or
// an array of records. Each element is decoded on its own, so a corrupt
// element yields an error while its siblings are still returned in order.
// Every returned error wraps exception.ErrDecode.
func DecodeFrame(frame []byte) ([]Message, []error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil, []error{errors.Wrap(exception.ErrDecode, "empty frame")}
	}

	if trimmed[0] != '[' {
		msg, err := DecodeMessage(trimmed)
		if err != nil {
			return nil, []error{err}
		}
		return []Message{msg}, nil
	}

	var elems []json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(trimmed, &elems); err != nil {
		return nil, []error{errors.Wrapf(exception.ErrDecode, "unmarshal frame: %v", err).With("payload", string(trimmed))}
	}

	var (
		msgs = make([]Message, 0, len(elems))
		errs []error
	)
	for i, elem := range elems {
		msg, err := DecodeMessage(elem)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "element %d", i))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, errs
}

// DecodeMessage decodes a single JSON record by its "ev" discriminator.
func DecodeMessage(raw []byte) (Message, error) {
	var env envelope
	if err := sonic.ConfigStd.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrapf(exception.ErrDecode, "unmarshal envelope: %v", err).With("payload", string(raw))
	}

	var (
		msg Message
		err error
	)
	switch env.Event {
	case EventTrade:
		msg, err = decodeAs[Trade](raw)
	case EventQuote:
		msg, err = decodeAs[Quote](raw)
	case EventSecondAggregate:
		msg, err = decodeAs[SecondAggregate](raw)
	case EventMinuteAggregate:
		msg, err = decodeAs[MinuteAggregate](raw)
	case EventStatus:
		msg, err = decodeAs[Status](raw)
	default:
		return nil, errors.Wrapf(exception.ErrDecode, "unknown event type %q", env.Event).With("payload", string(raw))
	}
	if err != nil {
		return nil, err
	}

	if sym, keyed := SymbolOf(msg); keyed && len(sym) == 0 {
		return nil, errors.Wrapf(exception.ErrDecode, "%s: empty symbol", env.Event).With("payload", string(raw))
	}
	return msg, nil
}

func decodeAs[T Message](raw []byte) (Message, error) {
	var v T
	if err := sonic.ConfigStd.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrapf(exception.ErrDecode, "unmarshal %s: %v", v.EventType(), err).With("payload", string(raw))
	}
	return v, nil
}
