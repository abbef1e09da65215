package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"

	"market-relay/internal/broker"
	"market-relay/internal/bus"
	"market-relay/internal/config"
	"market-relay/internal/ingest"
	"market-relay/internal/obs"
	"market-relay/internal/relay"
	"market-relay/internal/server"
	"market-relay/internal/store"
	"market-relay/pkg/conn"
	"market-relay/pkg/websocket"
)

const (
	brokerCloseTimeout = 10 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("relay: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logs.SetDefault(cfg.Log.Logger())
	logs.Info("starting")

	reporter, err := newReporter(cfg.Sentry)
	if err != nil {
		return err
	}
	defer reporter.Flush(sentryFlushTimeout)

	stopProfiler, err := obs.StartProfiler(cfg.Profiling)
	if err != nil {
		return err
	}
	defer stopProfiler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cancelOnShutdown(ctx, cancel, sys.Shutdown())

	subs := ingest.NewSubscriptions(cfg.Subscriptions()...)

	var journal relay.Journal
	if !cfg.Store.IsZero() {
		j, closeStore, err := openJournal(ctx, cfg.Store, subs)
		if err != nil {
			return err
		}
		defer closeStore()
		journal = j
	}

	brk, err := newBroker(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), brokerCloseTimeout)
		defer cancel()
		if err := brk.Close(closeCtx); err != nil {
			logs.Errorf("close broker, err: %+v", err)
		}
	}()

	metrics := obs.NewMetrics()
	connection := ingest.New(
		websocket.NewDialer(cfg.Polygon.BaseURL, websocket.DefaultOption()),
		cfg.Polygon.KeyID,
		subs,
		ingest.Option{
			Backoff:    cfg.Polygon.Backoff,
			MaxRetries: cfg.Polygon.MaxRetries,
			OnStateChange: func(from, to ingest.State) {
				metrics.ObserveState(from.String(), to.String())
			},
		},
	)
	engine := relay.NewEngine(brk, relay.EngineOption{
		MaxInFlight: cfg.Kafka.MaxInFlight,
		Metrics:     metrics,
		Reporter:    reporter,
	})

	queue := bus.NewQueue(cfg.Server.CommandBuffer)
	defer queue.Close()

	rl := relay.New(connection, engine, queue.C(), relay.Option{
		Control: relay.ControlOption{
			Subscriptions: subs,
			Journal:       journal,
			Metrics:       metrics,
		},
	})
	srv := server.New(cfg.Server, queue, server.Option{
		Debug:    cfg.Log.Debug(),
		Session:  connection,
		InFlight: engine,
		Gatherer: obs.NewRegistry(metrics, bufferedOf(brk)),
	})

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		// the control server has nothing to do once the relay is gone
		defer cancel()
		return rl.Run(egCtx)
	})
	eg.Go(func() error {
		return srv.Run(egCtx)
	})

	if err := eg.Wait(); err != nil {
		reporter.Report(err, "fatal")
		return err
	}
	logs.Info("stopped")
	return nil
}

// cancelOnShutdown cancels once shutdown is closed. sys.Shutdown closes its
// channel instead of sending the signal.
func cancelOnShutdown(ctx context.Context, cancel context.CancelFunc, shutdown <-chan os.Signal) {
	select {
	case <-shutdown:
		logs.Info("shutdown signal received")
		cancel()
	case <-ctx.Done():
	}
}

func newReporter(cfg obs.SentryConfig) (obs.Reporter, error) {
	if cfg.DSN == "" {
		return obs.LogReporter{}, nil
	}
	return obs.NewSentryReporter(cfg)
}

func newBroker(cfg *config.Config) (broker.Broker, error) {
	if cfg.Broker.Kind == config.BrokerMemory {
		logs.Warn("using the in-memory broker, records are not delivered anywhere")
		return broker.NewMemory(), nil
	}
	return broker.NewProducer(cfg.Kafka.KafkaConfig)
}

// bufferedOf returns the broker's client buffer gauge source, or nil when
// the broker has none.
func bufferedOf(b broker.Broker) obs.Buffered {
	if buffered, ok := b.(obs.Buffered); ok {
		return buffered
	}
	return nil
}

// openJournal connects the subscription store and merges journaled
// subscriptions into subs.
func openJournal(ctx context.Context, opt conn.Option, subs *ingest.Subscriptions) (*store.Journal, func(), error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := client.Close(); err != nil {
			logs.Warnf("close store, err: %+v", err)
		}
	}

	journal, err := store.NewJournal(client.DB())
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if err := journal.Migrate(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}

	restored, err := journal.List(ctx)
	if err != nil {
		closeStore()
		return nil, nil, errors.Wrap(err, "restore subscriptions")
	}
	for _, sub := range restored {
		subs.Add(sub)
	}
	logs.Infof("restored %d journaled subscription(s)", len(restored))
	return journal, closeStore, nil
}
