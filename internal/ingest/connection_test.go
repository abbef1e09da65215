package ingest

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"market-relay/internal/model"
	"market-relay/internal/model/enum"
	"market-relay/internal/obs"
	"market-relay/pkg/exception"
	"market-relay/pkg/websocket"
)

var (
	quoteAAPL = model.Subscription{Class: enum.EventClassQuote, Ticker: "AAPL"}
	tradeAAPL = model.Subscription{Class: enum.EventClassTrade, Ticker: "AAPL"}
	tradeMSFT = model.Subscription{Class: enum.EventClassTrade, Ticker: "MSFT"}
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *stateRecorder) Got() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func fastOption(rec *stateRecorder, maxRetries int) Option {
	opt := Option{
		Backoff:    websocket.Backoff{Min: time.Millisecond, Max: time.Millisecond, Factor: 2},
		MaxRetries: maxRetries,
	}
	if rec != nil {
		opt.OnStateChange = rec.record
	}
	return opt
}

func TestConnectHandshake(t *testing.T) {
	conn := newFakeConn()
	rec := &stateRecorder{}
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", NewSubscriptions(quoteAAPL, tradeAAPL), fastOption(rec, 3))

	in, out, err := c.Connect(t.Context())
	require.NoError(t, err)
	require.NotNil(t, in)
	require.NotNil(t, out)

	assert.Equal(t, StateStreaming, c.State())
	assert.Equal(t, []State{StateConnecting, StateAuthenticating, StateSubscribing, StateStreaming}, rec.Got())

	written := conn.Written()
	require.Len(t, written, 2)
	assert.JSONEq(t, `{"action":"auth","params":"key"}`, written[0])
	assert.JSONEq(t, `{"action":"subscribe","params":"Q.AAPL,T.AAPL"}`, written[1])
}

func TestConnectWithoutSubscriptionsOnlyAuthenticates(t *testing.T) {
	conn := newFakeConn()
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	_, _, err := c.Connect(t.Context())
	require.NoError(t, err)
	assert.Len(t, conn.Written(), 1)
}

func TestConnectFailureIsFatal(t *testing.T) {
	dialer := &fakeDialer{steps: []dialStep{{err: errors.Wrap(exception.ErrTransport, "refused")}}}
	c := New(dialer, "key", NewSubscriptions(tradeAAPL), fastOption(nil, 3))

	_, _, err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrConnect), err.Error())
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 1, dialer.Dials(), "startup connect must not retry")
}

func TestConnectAuthWriteFailureIsFatal(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errors.Wrap(exception.ErrTransport, "write")
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	_, _, err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrConnect))
	assert.Equal(t, StateFailed, c.State())
	assert.True(t, conn.Closed())
}

func TestRecvReconnectsWithPreservedSubscriptions(t *testing.T) {
	first := newFakeConn(
		text(`{"ev":"T","sym":"AAPL","p":1,"s":1,"t":1}`),
		fail(io.EOF),
	)
	second := newFakeConn(
		text(`{"ev":"T","sym":"AAPL","p":1,"s":1,"t":2}`),
	)
	dialer := &fakeDialer{steps: []dialStep{
		{conn: first},
		{err: errors.Wrap(exception.ErrTransport, "refused")},
		{conn: second},
	}}
	rec := &stateRecorder{}
	subs := NewSubscriptions(tradeAAPL)
	c := New(dialer, "key", subs, fastOption(rec, 5))

	in, _, err := c.Connect(t.Context())
	require.NoError(t, err)

	msg, err := in.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.(model.Trade).Timestamp)

	subs.Add(tradeMSFT)

	msg, err = in.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), msg.(model.Trade).Timestamp)

	assert.Equal(t, StateStreaming, c.State())
	assert.Equal(t, 3, dialer.Dials())
	assert.True(t, first.Closed())

	written := second.Written()
	require.Len(t, written, 2)
	assert.JSONEq(t, `{"action":"auth","params":"key"}`, written[0])
	assert.JSONEq(t, `{"action":"subscribe","params":"T.AAPL,T.MSFT"}`, written[1])

	assert.Equal(t, []State{
		StateConnecting, StateAuthenticating, StateSubscribing, StateStreaming,
		StateReconnecting, StateConnecting, StateReconnecting,
		StateConnecting, StateAuthenticating, StateSubscribing, StateStreaming,
	}, rec.Got())
}

func TestReconnectWithRetriesCountsOnce(t *testing.T) {
	first := newFakeConn(fail(io.EOF))
	second := newFakeConn(text(`{"ev":"T","sym":"AAPL","p":1,"s":1,"t":2}`))
	dialer := &fakeDialer{steps: []dialStep{
		{conn: first},
		{err: errors.Wrap(exception.ErrTransport, "refused")},
		{err: errors.Wrap(exception.ErrTransport, "refused")},
		{conn: second},
	}}
	metrics := obs.NewMetrics()
	opt := fastOption(nil, 5)
	opt.OnStateChange = func(from, to State) { metrics.ObserveState(from.String(), to.String()) }
	c := New(dialer, "key", NewSubscriptions(tradeAAPL), opt)

	in, _, err := c.Connect(t.Context())
	require.NoError(t, err)
	_, err = in.Recv(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 4, dialer.Dials())
	assert.Equal(t, uint64(1), metrics.Snapshot().Reconnects)
	assert.Equal(t, "streaming", metrics.Snapshot().State)
}

func TestRecvReconnectExhausted(t *testing.T) {
	first := newFakeConn(fail(errors.Wrap(exception.ErrConnectionLost, "peer gone")))
	dialer := &fakeDialer{steps: []dialStep{
		{conn: first},
		{err: errors.Wrap(exception.ErrTransport, "refused")},
		{err: errors.Wrap(exception.ErrTransport, "refused")},
	}}
	c := New(dialer, "key", NewSubscriptions(tradeAAPL), fastOption(nil, 2))

	in, out, err := c.Connect(t.Context())
	require.NoError(t, err)

	_, err = in.Recv(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrReconnectExhausted), err.Error())
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 3, dialer.Dials())

	err = out.Send(t.Context(), model.SubscribeAction(tradeMSFT))
	assert.True(t, errors.Is(err, exception.ErrSessionFailed))
}

func TestRecvTransportErrorFails(t *testing.T) {
	conn := newFakeConn(fail(errors.Wrap(exception.ErrTransport, "protocol violation")))
	dialer := &fakeDialer{steps: []dialStep{{conn: conn}}}
	c := New(dialer, "key", nil, fastOption(nil, 3))

	in, _, err := c.Connect(t.Context())
	require.NoError(t, err)

	_, err = in.Recv(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTransport), err.Error())
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 1, dialer.Dials())
}

func TestRecvDecodeErrorIsNotATransition(t *testing.T) {
	conn := newFakeConn(
		text(`[{"ev":"T","sym":"AAPL","p":1,"s":1,"t":1},{"ev":"T","sym":""}]`),
		text(`garbage`),
		text(`{"ev":"status","status":"connected","message":"ok"}`),
	)
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	in, _, err := c.Connect(t.Context())
	require.NoError(t, err)

	_, err = in.Recv(t.Context())
	assert.True(t, errors.Is(err, exception.ErrDecode))

	msg, err := in.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, model.EventTrade, msg.EventType())

	_, err = in.Recv(t.Context())
	assert.True(t, errors.Is(err, exception.ErrDecode))

	msg, err = in.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, model.EventStatus, msg.EventType())

	assert.Equal(t, StateStreaming, c.State())
}

func TestRecvFatalStatusFailsSession(t *testing.T) {
	conn := newFakeConn(
		text(`[{"ev":"status","status":"force_disconnect","message":"bye"},{"ev":"T","sym":"AAPL","p":1,"s":1,"t":1}]`),
	)
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	in, out, err := c.Connect(t.Context())
	require.NoError(t, err)

	msg, err := in.Recv(t.Context())
	require.NoError(t, err)
	status, ok := msg.(model.Status)
	require.True(t, ok)
	assert.Equal(t, model.StatusForceDisconnect, status.Status)
	assert.Equal(t, StateFailed, c.State())
	assert.True(t, conn.Closed())

	_, err = in.Recv(t.Context())
	assert.True(t, errors.Is(err, exception.ErrSessionFailed))
	assert.True(t, errors.Is(out.Send(t.Context(), model.SubscribeAction(tradeMSFT)), exception.ErrSessionFailed))
}

func TestOutboundSendWithoutSocketIsReconnectInProgress(t *testing.T) {
	conn := newFakeConn()
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	_, out, err := c.Connect(t.Context())
	require.NoError(t, err)

	require.NoError(t, out.Send(t.Context(), model.SubscribeAction(tradeMSFT)))
	assert.JSONEq(t, `{"action":"subscribe","params":"T.MSFT"}`, conn.Written()[1])

	c.dropConn(websocket.CloseGoingAway, "test")
	err = out.Send(t.Context(), model.SubscribeAction(tradeMSFT))
	assert.True(t, errors.Is(err, exception.ErrReconnectInProgress), err.Error())
}

func TestOutboundSendReturnsSocketWriteError(t *testing.T) {
	conn := newFakeConn()
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	_, out, err := c.Connect(t.Context())
	require.NoError(t, err)

	writeErr := errors.Wrap(exception.ErrConnectionLost, "write tcp: broken pipe")
	conn.mu.Lock()
	conn.writeErr = writeErr
	conn.mu.Unlock()

	err = out.Send(t.Context(), model.SubscribeAction(tradeMSFT))
	require.Error(t, err)
	assert.False(t, errors.Is(err, exception.ErrReconnectInProgress))
	assert.True(t, errors.Is(err, exception.ErrConnectionLost))
	assert.Equal(t, StateStreaming, c.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	c := New(&fakeDialer{steps: []dialStep{{conn: conn}}}, "key", nil, fastOption(nil, 3))

	_, _, err := c.Connect(t.Context())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, conn.Closed())
	assert.Equal(t, StateDisconnected, c.State())
}
