package relay

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"market-relay/internal/ingest"
	"market-relay/internal/model"
	"market-relay/pkg/exception"
)

// Connector opens the upstream session. *ingest.Connection satisfies it.
type Connector interface {
	Connect(ctx context.Context) (*ingest.Inbound, *ingest.Outbound, error)
	Subscriptions() *ingest.Subscriptions
	Close() error
}

type Option struct {
	Control ControlOption
}

// Relay runs the engine on the inbound half of a connection and the
// control multiplexer on its outbound half.
type Relay struct {
	conn     Connector
	engine   *Engine
	commands <-chan model.Command
	opt      Option
}

func New(conn Connector, engine *Engine, commands <-chan model.Command, opt Option) *Relay {
	if opt.Control.Subscriptions == nil {
		opt.Control.Subscriptions = conn.Subscriptions()
	}
	return &Relay{
		conn:     conn,
		engine:   engine,
		commands: commands,
		opt:      opt,
	}
}

// Run connects and relays until a fatal error, a Stop command or ctx
// cancellation. The latter two return nil.
func (r *Relay) Run(ctx context.Context) error {
	inbound, outbound, err := r.conn.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.conn.Close(); err != nil {
			logs.Warnf("close connection, err: %+v", err)
		}
	}()
	logs.Infof("relay started with %d subscription(s)", r.opt.Control.Subscriptions.Len())

	return r.run(ctx, inbound, NewControl(r.commands, outbound, r.opt.Control))
}

func (r *Relay) run(ctx context.Context, src Source, control *Control) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return r.engine.Run(egCtx, src)
	})
	// a closed command channel ends only the control side
	eg.Go(func() error {
		return control.Run(egCtx)
	})

	err := eg.Wait()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, exception.ErrStopRequested):
		logs.Info("relay stopped by command")
		return nil
	default:
		return err
	}
}
