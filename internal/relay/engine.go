package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/semaphore"

	"market-relay/internal/broker"
	"market-relay/internal/model"
	"market-relay/internal/obs"
	"market-relay/internal/router"
	"market-relay/pkg/exception"
)

// DefaultMaxInFlight is a tenth of the producer's default record buffer.
const DefaultMaxInFlight = broker.DefaultMaxBufferedRecords / 10

// Source yields decoded upstream messages. *ingest.Inbound satisfies it.
type Source interface {
	Recv(ctx context.Context) (model.Message, error)
}

type EngineOption struct {
	// MaxInFlight bounds broker sends awaiting an ack.
	MaxInFlight int
	Metrics     *obs.Metrics
	Reporter    obs.Reporter
}

// Engine drains a Source into a Broker. Sends are started from the draining
// goroutine in receive order, so records sharing a key reach the broker in
// the order they arrived.
type Engine struct {
	broker   broker.Broker
	opt      EngineOption
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

func NewEngine(b broker.Broker, opt EngineOption) *Engine {
	if opt.MaxInFlight <= 0 {
		opt.MaxInFlight = DefaultMaxInFlight
	}
	if opt.Reporter == nil {
		opt.Reporter = obs.LogReporter{}
	}
	return &Engine{
		broker: b,
		opt:    opt,
		sem:    semaphore.NewWeighted(int64(opt.MaxInFlight)),
	}
}

// InFlight is the number of sends awaiting an ack.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

// Run forwards messages until src fails or ctx ends, then waits for every
// outstanding send to resolve.
//
// Decode and serialize failures are reported and skipped. A fatal provider
// status ends the run with exception.ErrFatalStatus before anything is
// sent for it. Any other receive error ends the run and is returned.
// Cancelling ctx ends the run with nil.
func (e *Engine) Run(ctx context.Context, src Source) error {
	defer e.wg.Wait()

	for {
		msg, err := src.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, exception.ErrDecode) {
				e.opt.Metrics.IncDecodeError()
				e.opt.Reporter.Report(err, "decode")
				continue
			}
			return errors.Wrap(err, "receive")
		}
		e.opt.Metrics.ObserveMessage(msg)

		if status, ok := msg.(model.Status); ok {
			if status.Status.IsFatal() {
				err := errors.Wrapf(exception.ErrFatalStatus, "%s: %s", status.Status, status.Message)
				e.opt.Reporter.Report(err, "fatal_status")
				return err
			}
			logs.Infof("provider status: %s, message: %s", status.Status, status.Message)
		}

		route, err := router.Classify(msg)
		if err != nil {
			e.opt.Metrics.IncSerializeError()
			e.opt.Reporter.Report(err, "serialize")
			continue
		}

		if err := e.submit(ctx, route); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// submit blocks until a slot is free, then starts the send. The slot is
// released by the ack callback.
func (e *Engine) submit(ctx context.Context, route router.Route) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	e.wg.Add(1)
	e.inFlight.Add(1)
	e.opt.Metrics.BeginSend()
	start := time.Now()

	rec := broker.Record{Topic: route.Topic, Key: route.Key, Value: route.Payload}
	logs.Debugf("send topic: %s, key: %s, payload: %s", rec.Topic, rec.Key, rec.Value)

	// in-flight sends outlive ctx and resolve through the broker's own
	// delivery timeout
	e.broker.Send(context.WithoutCancel(ctx), rec, func(err error) {
		defer e.wg.Done()
		defer e.sem.Release(1)
		e.inFlight.Add(-1)
		outcome := broker.OutcomeOf(err)
		e.opt.Metrics.EndSend(outcome, time.Since(start))
		if outcome == broker.Failed {
			e.opt.Reporter.Report(
				errors.Wrapf(err, "deliver %s/%s", rec.Topic, rec.Key).With("payload", string(rec.Value)),
				"delivery",
			)
		}
	})
	return nil
}
