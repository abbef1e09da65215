package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-relay/internal/model/enum"
)

func TestSubscribeActionJoinsParams(t *testing.T) {
	action := SubscribeAction(
		Subscription{Class: enum.EventClassQuote, Ticker: "AAPL"},
		Subscription{Class: enum.EventClassTrade, Ticker: "AAPL"},
		Subscription{Class: enum.EventClassMinuteAggregate, Ticker: "MSFT"},
	)
	assert.Equal(t, ActionSubscribe, action.Action)
	assert.Equal(t, "Q.AAPL,T.AAPL,AM.MSFT", action.Params)

	buf, err := action.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"subscribe","params":"Q.AAPL,T.AAPL,AM.MSFT"}`, string(buf))
}

func TestAuthAction(t *testing.T) {
	buf, err := AuthAction("secret").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"auth","params":"secret"}`, string(buf))
}

func TestCommandAction(t *testing.T) {
	sub := Subscription{Class: enum.EventClassSecondAggregate, Ticker: "TSLA"}

	action, ok := NewSubscribeCommand(sub).Action()
	require.True(t, ok)
	assert.Equal(t, Action{Action: ActionSubscribe, Params: "A.TSLA"}, action)

	action, ok = NewUnsubscribeCommand(sub).Action()
	require.True(t, ok)
	assert.Equal(t, Action{Action: ActionUnsubscribe, Params: "A.TSLA"}, action)

	_, ok = NewStartCommand().Action()
	assert.False(t, ok)
	_, ok = NewStopCommand().Action()
	assert.False(t, ok)
}

func TestCommandIDsAreUnique(t *testing.T) {
	a, b := NewStopCommand(), NewStopCommand()
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubscriptionIsValid(t *testing.T) {
	assert.True(t, Subscription{Class: enum.EventClassTrade, Ticker: "AAPL"}.IsValid())
	assert.False(t, Subscription{Class: enum.EventClassTrade, Ticker: " "}.IsValid())
	assert.False(t, Subscription{Ticker: "AAPL"}.IsValid())
}
