package ingest

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"market-relay/internal/model"
	"market-relay/pkg/exception"
	"market-relay/pkg/websocket"
)

const DefaultMaxRetries = 10

// Option tunes reconnect behavior.
type Option struct {
	Backoff websocket.Backoff
	// MaxRetries bounds consecutive reconnect attempts before the session fails.
	MaxRetries int
	// OnStateChange is called after every state transition.
	OnStateChange func(from, to State)
}

// Connection is the upstream session. It owns the live socket, the auth
// token and the subscription set, and replaces the socket on reconnect
// while keeping the set.
type Connection struct {
	dialer websocket.Dialer
	token  string
	subs   *Subscriptions
	opt    Option
	sm     *StateMachine

	// reader is only touched by the inbound path, which also drives reconnects.
	reader websocket.Reader

	// mu guards conn and writer, and is held for every outbound write,
	// including the handshake, so at most one writer uses the socket.
	mu     sync.Mutex
	conn   websocket.Conn
	writer websocket.Writer
}

func New(dialer websocket.Dialer, token string, subs *Subscriptions, opt Option) *Connection {
	if subs == nil {
		subs = NewSubscriptions()
	}
	if opt.MaxRetries <= 0 {
		opt.MaxRetries = DefaultMaxRetries
	}
	if opt.Backoff == (websocket.Backoff{}) {
		opt.Backoff = websocket.DefaultBackoff()
	}

	c := &Connection{
		dialer: dialer,
		token:  token,
		subs:   subs,
		opt:    opt,
	}
	c.sm = NewStateMachine(c.stateChanged)
	return c
}

func (c *Connection) State() State {
	return c.sm.State()
}

func (c *Connection) Subscriptions() *Subscriptions {
	return c.subs
}

// Connect performs the initial connect, auth and subscribe handshake. Any
// failure leaves the session Failed and wraps exception.ErrConnect.
func (c *Connection) Connect(ctx context.Context) (*Inbound, *Outbound, error) {
	if c.dialer == nil {
		return nil, nil, exception.ErrNilDialer
	}
	if err := c.sm.Transition(StateConnecting); err != nil {
		return nil, nil, err
	}
	if err := c.establish(ctx); err != nil {
		c.fail()
		return nil, nil, errors.Wrapf(exception.ErrConnect, "%s", err)
	}
	return &Inbound{conn: c}, &Outbound{conn: c}, nil
}

// Close shuts the live socket. It is safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.conn != nil {
		err = c.conn.Close(websocket.CloseNormal, "shutdown")
	}
	c.conn, c.writer = nil, nil
	if state := c.sm.State(); state != StateFailed && state != StateDisconnected {
		_ = c.sm.Transition(StateDisconnected)
	}
	return err
}

// establish runs Connecting -> Authenticating -> Subscribing -> Streaming on
// a fresh socket. The caller must have moved the machine to Connecting.
func (c *Connection) establish(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return errors.Wrap(err, "dial")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	abort := func(err error) error {
		_ = conn.Close(websocket.CloseNormal, "handshake failed")
		return err
	}

	reader, writer := websocket.Split(conn)

	if err := c.sm.Transition(StateAuthenticating); err != nil {
		return abort(err)
	}
	if err := writeAction(ctx, writer, model.AuthAction(c.token)); err != nil {
		return abort(errors.Wrap(err, "write auth"))
	}

	if err := c.sm.Transition(StateSubscribing); err != nil {
		return abort(err)
	}
	if subs := c.subs.List(); len(subs) != 0 {
		action := model.SubscribeAction(subs...)
		if err := writeAction(ctx, writer, action); err != nil {
			return abort(errors.Wrap(err, "write subscribe").With("params", action.Params))
		}
	}

	if err := c.sm.Transition(StateStreaming); err != nil {
		return abort(err)
	}
	c.conn, c.reader, c.writer = conn, reader, writer
	return nil
}

// reconnect replaces a lost socket. The first attempt is immediate, later
// ones back off. Exhausting MaxRetries leaves the session Failed.
func (c *Connection) reconnect(ctx context.Context, cause error) error {
	if err := c.sm.Transition(StateReconnecting); err != nil {
		return err
	}
	c.dropConn(websocket.CloseGoingAway, "reconnect")
	logs.Warnf("connection lost, reconnecting with %d subscription(s), err: %+v", c.subs.Len(), cause)

	lastErr := cause
	for attempt := 1; attempt <= c.opt.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := websocket.Sleep(ctx, c.opt.Backoff.Next(attempt-1)); err != nil {
				return err
			}
		}
		if err := c.sm.Transition(StateConnecting); err != nil {
			return err
		}

		err := c.establish(ctx)
		if err == nil {
			logs.Infof("reconnected after %d attempt(s)", attempt)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		logs.Warnf("reconnect attempt %d/%d failed, err: %+v", attempt, c.opt.MaxRetries, err)
		if err := c.sm.Transition(StateReconnecting); err != nil {
			return err
		}
	}

	c.fail()
	return errors.Wrapf(exception.ErrReconnectExhausted, "%d attempts, last err: %s", c.opt.MaxRetries, lastErr)
}

func (c *Connection) send(ctx context.Context, action model.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.State() == StateFailed {
		return exception.ErrSessionFailed
	}
	if c.writer == nil {
		return exception.ErrReconnectInProgress
	}
	return writeAction(ctx, c.writer, action)
}

func (c *Connection) fail() {
	if c.sm.State() != StateFailed {
		_ = c.sm.Transition(StateFailed)
	}
	c.dropConn(websocket.CloseNormal, "session failed")
}

func (c *Connection) dropConn(code websocket.CloseCode, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(code, reason)
	}
	c.conn, c.writer = nil, nil
}

func (c *Connection) stateChanged(from, to State) {
	logs.Infof("connection state: %s -> %s", from, to)
	if c.opt.OnStateChange != nil {
		c.opt.OnStateChange(from, to)
	}
}

func writeAction(ctx context.Context, w websocket.Writer, action model.Action) error {
	payload, err := action.Encode()
	if err != nil {
		return errors.Wrapf(exception.ErrSerialize, "encode %s action: %s", action.Action, err)
	}
	return w.Write(ctx, websocket.MessageText, payload)
}
