package enum

import "strings"

// EventClass is the upstream stream a subscription targets.
type EventClass uint8

const (
	_eventClass_beg EventClass = iota
	EventClassQuote
	EventClassTrade
	EventClassSecondAggregate
	EventClassMinuteAggregate
	_eventClass_end
)

func (c EventClass) IsAvailable() bool {
	return c > _eventClass_beg && c < _eventClass_end
}

// String returns the wire prefix used in subscribe params.
func (c EventClass) String() string {
	switch c {
	case EventClassQuote:
		return "Q"
	case EventClassTrade:
		return "T"
	case EventClassSecondAggregate:
		return "A"
	case EventClassMinuteAggregate:
		return "AM"
	default:
		return ""
	}
}

// Name is the human readable name used in logs.
func (c EventClass) Name() string {
	switch c {
	case EventClassQuote:
		return "Quotes"
	case EventClassTrade:
		return "Trades"
	case EventClassSecondAggregate:
		return "SecondAggregates"
	case EventClassMinuteAggregate:
		return "MinuteAggregates"
	default:
		return "Unknown"
	}
}

// ParseEventClass accepts the wire prefix in any case.
func ParseEventClass(s string) (EventClass, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Q":
		return EventClassQuote, true
	case "T":
		return EventClassTrade, true
	case "A":
		return EventClassSecondAggregate, true
	case "AM":
		return EventClassMinuteAggregate, true
	default:
		return _eventClass_beg, false
	}
}

// EventClasses lists every class in subscribe order.
func EventClasses() []EventClass {
	return []EventClass{
		EventClassQuote,
		EventClassTrade,
		EventClassSecondAggregate,
		EventClassMinuteAggregate,
	}
}
