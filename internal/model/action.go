package model

import (
	"strings"

	"github.com/bytedance/sonic"

	"market-relay/internal/model/enum"
)

const (
	ActionAuth        = "auth"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Subscription is one "<class>.<ticker>" stream.
type Subscription struct {
	Class  enum.EventClass
	Ticker string
}

func (s Subscription) String() string {
	return s.Class.String() + "." + s.Ticker
}

// IsValid reports whether the subscription can be sent upstream.
func (s Subscription) IsValid() bool {
	return s.Class.IsAvailable() && len(strings.TrimSpace(s.Ticker)) != 0
}

// Action is the outbound control frame understood by the provider.
type Action struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

func AuthAction(token string) Action {
	return Action{Action: ActionAuth, Params: token}
}

func SubscribeAction(subs ...Subscription) Action {
	return Action{Action: ActionSubscribe, Params: joinParams(subs)}
}

func UnsubscribeAction(subs ...Subscription) Action {
	return Action{Action: ActionUnsubscribe, Params: joinParams(subs)}
}

// Encode returns the JSON frame for the action.
func (a Action) Encode() ([]byte, error) {
	return sonic.ConfigStd.Marshal(a)
}

func joinParams(subs []Subscription) string {
	var sb strings.Builder
	for i, sub := range subs {
		if i != 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(sub.String())
	}
	return sb.String()
}
