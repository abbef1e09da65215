package relay

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"market-relay/internal/ingest"
	"market-relay/internal/model"
	"market-relay/internal/obs"
	"market-relay/pkg/exception"
)

// Sink accepts outbound provider actions. *ingest.Outbound satisfies it.
type Sink interface {
	Send(ctx context.Context, action model.Action) error
}

// Journal persists subscription changes across restarts.
type Journal interface {
	Add(ctx context.Context, sub model.Subscription) error
	Remove(ctx context.Context, sub model.Subscription) error
}

type ControlOption struct {
	// Subscriptions is the set the connection resubscribes with after a
	// reconnect. It is updated before the action is written.
	Subscriptions *ingest.Subscriptions
	Journal       Journal
	Metrics       *obs.Metrics
}

// Control forwards commands onto the outbound half of the connection.
type Control struct {
	cmds <-chan model.Command
	sink Sink
	opt  ControlOption
}

func NewControl(cmds <-chan model.Command, sink Sink, opt ControlOption) *Control {
	if opt.Subscriptions == nil {
		opt.Subscriptions = ingest.NewSubscriptions()
	}
	return &Control{cmds: cmds, sink: sink, opt: opt}
}

// Run applies commands until the channel closes (nil), ctx ends (nil), a
// Stop command arrives (exception.ErrStopRequested) or a socket write fails
// (exception.ErrControlWrite). A command arriving while the socket is being
// replaced is only recorded in the subscription set.
func (c *Control) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-c.cmds:
			if !ok {
				logs.Info("command channel closed")
				return nil
			}
			if err := c.apply(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (c *Control) apply(ctx context.Context, cmd model.Command) error {
	c.opt.Metrics.IncCommand()
	logger := logs.With("command_id", cmd.ID.String(), "kind", cmd.Kind.String())

	switch cmd.Kind {
	case model.CommandStart:
		logger.Info("start command received")
		return nil
	case model.CommandStop:
		logger.Info("stop command received")
		return exception.ErrStopRequested
	case model.CommandSubscribe:
		if c.opt.Subscriptions.Add(cmd.Subscription) {
			c.journal(ctx, cmd)
		}
	case model.CommandUnsubscribe:
		if c.opt.Subscriptions.Remove(cmd.Subscription) {
			c.journal(ctx, cmd)
		}
	default:
		logger.Warnf("ignore command, err: %+v", errors.Wrapf(exception.ErrUnknownCommand, "%d", cmd.Kind))
		return nil
	}

	action, _ := cmd.Action()
	if err := c.sink.Send(ctx, action); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, exception.ErrReconnectInProgress) {
			logger.Warnf("reconnecting, %s will be sent on resubscribe", cmd.Subscription)
			return nil
		}
		return errors.Wrapf(exception.ErrControlWrite, "%s %s: %s", action.Action, action.Params, err)
	}
	logger.Infof("sent %s %s", action.Action, action.Params)
	return nil
}

func (c *Control) journal(ctx context.Context, cmd model.Command) {
	if c.opt.Journal == nil {
		return
	}

	var err error
	switch cmd.Kind {
	case model.CommandSubscribe:
		err = c.opt.Journal.Add(ctx, cmd.Subscription)
	case model.CommandUnsubscribe:
		err = c.opt.Journal.Remove(ctx, cmd.Subscription)
	}
	if err != nil {
		logs.Warnf("journal %s %s, err: %+v", cmd.Kind, cmd.Subscription, err)
	}
}
