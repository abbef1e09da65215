package model

// EventType is the value of the "ev" field on every inbound record.
type EventType string

const (
	EventTrade           EventType = "T"
	EventQuote           EventType = "Q"
	EventSecondAggregate EventType = "A"
	EventMinuteAggregate EventType = "AM"
	EventStatus          EventType = "status"
)

// Message is one decoded upstream record.
//
// The set of implementations is closed: Trade, Quote, SecondAggregate,
// MinuteAggregate and Status.
type Message interface {
	EventType() EventType
	isMessage()
}

var (
	_ Message = Trade{}
	_ Message = Quote{}
	_ Message = SecondAggregate{}
	_ Message = MinuteAggregate{}
	_ Message = Status{}
)

// Trade is a single execution print.
type Trade struct {
	Event      EventType `json:"ev"`
	Symbol     string    `json:"sym"`
	Exchange   int32     `json:"x,omitempty"`
	ID         string    `json:"i,omitempty"`
	Tape       int32     `json:"z,omitempty"`
	Price      float64   `json:"p"`
	Size       int64     `json:"s"`
	Conditions []int32   `json:"c,omitempty"`
	Timestamp  int64     `json:"t"`
}

func (Trade) EventType() EventType { return EventTrade }
func (Trade) isMessage()           {}

// Quote is a top of book NBBO update.
type Quote struct {
	Event       EventType `json:"ev"`
	Symbol      string    `json:"sym"`
	BidExchange int32     `json:"bx,omitempty"`
	BidPrice    float64   `json:"bp"`
	BidSize     int64     `json:"bs"`
	AskExchange int32     `json:"ax,omitempty"`
	AskPrice    float64   `json:"ap"`
	AskSize     int64     `json:"as"`
	Condition   int32     `json:"c,omitempty"`
	Timestamp   int64     `json:"t"`
	Tape        int32     `json:"z,omitempty"`
}

func (Quote) EventType() EventType { return EventQuote }
func (Quote) isMessage()           {}

// Aggregate is an OHLCV bar over [StartTimestamp, EndTimestamp).
type Aggregate struct {
	Event            EventType `json:"ev"`
	Symbol           string    `json:"sym"`
	Volume           int64     `json:"v"`
	AccumulatedVol   int64     `json:"av,omitempty"`
	OfficialOpen     float64   `json:"op,omitempty"`
	VWAP             float64   `json:"vw"`
	Open             float64   `json:"o"`
	Close            float64   `json:"c"`
	High             float64   `json:"h"`
	Low              float64   `json:"l"`
	DayVWAP          float64   `json:"a,omitempty"`
	AverageTradeSize int64     `json:"z,omitempty"`
	StartTimestamp   int64     `json:"s"`
	EndTimestamp     int64     `json:"e"`
}

// SecondAggregate is a per-second bar.
type SecondAggregate Aggregate

func (SecondAggregate) EventType() EventType { return EventSecondAggregate }
func (SecondAggregate) isMessage()           {}

// MinuteAggregate is a per-minute bar.
type MinuteAggregate Aggregate

func (MinuteAggregate) EventType() EventType { return EventMinuteAggregate }
func (MinuteAggregate) isMessage()           {}

// Status is a control plane notice from the provider.
type Status struct {
	Event   EventType  `json:"ev"`
	Status  StatusCode `json:"status"`
	Message string     `json:"message"`
}

func (Status) EventType() EventType { return EventStatus }
func (Status) isMessage()           {}

// SymbolOf returns the symbol of a data record and false for Status.
func SymbolOf(msg Message) (string, bool) {
	switch m := msg.(type) {
	case Trade:
		return m.Symbol, true
	case Quote:
		return m.Symbol, true
	case SecondAggregate:
		return m.Symbol, true
	case MinuteAggregate:
		return m.Symbol, true
	default:
		return "", false
	}
}
