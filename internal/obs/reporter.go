package obs

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Reporter surfaces errors that an operator should see. Every report is
// logged; implementations may also forward it to an error tracker.
type Reporter interface {
	Report(err error, kind string)
	Flush(timeout time.Duration) bool
}

// LogReporter only logs.
type LogReporter struct{}

var _ Reporter = LogReporter{}

func (LogReporter) Report(err error, kind string) {
	if err == nil {
		return
	}
	logs.With("kind", kind).Errorf("%+v", err)
}

func (LogReporter) Flush(time.Duration) bool { return true }

// SentryConfig configures error forwarding. An empty DSN disables delivery.
type SentryConfig struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	Release     string  `yaml:"release"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// SentryReporter logs and forwards to Sentry through its own hub.
type SentryReporter struct {
	hub *sentry.Hub
}

var _ Reporter = (*SentryReporter)(nil)

func NewSentryReporter(cfg SentryConfig) (*SentryReporter, error) {
	return newSentryReporter(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
}

func newSentryReporter(opt sentry.ClientOptions) (*SentryReporter, error) {
	client, err := sentry.NewClient(opt)
	if err != nil {
		return nil, errors.Wrap(err, "new sentry client")
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (r *SentryReporter) Report(err error, kind string) {
	if err == nil {
		return
	}
	LogReporter{}.Report(err, kind)
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("kind", kind)
		r.hub.CaptureException(err)
	})
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
