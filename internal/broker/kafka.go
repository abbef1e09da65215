package broker

import (
	"context"
	"crypto/tls"
	"strings"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"market-relay/pkg/exception"
)

const (
	// DefaultDeliveryTimeout bounds how long a record may wait for an ack.
	DefaultDeliveryTimeout    = 5 * time.Second
	DefaultMaxBufferedRecords = 100_000
	DefaultClientID           = "market-relay"
)

const (
	AcksAll    = "all"
	AcksLeader = "leader"
	AcksNone   = "none"
)

const (
	SecurityPlaintext     = "PLAINTEXT"
	SecuritySSL           = "SSL"
	SecuritySASLPlaintext = "SASL_PLAINTEXT"
	SecuritySASLSSL       = "SASL_SSL"
)

// KafkaConfig configures the franz-go producer.
type KafkaConfig struct {
	Brokers            []string      `yaml:"brokers"`
	ClientID           string        `yaml:"client_id"`
	SecurityProtocol   string        `yaml:"security_protocol"`
	SASLMechanism      string        `yaml:"sasl_mechanism"`
	SASLUsername       string        `yaml:"sasl_username"`
	SASLPassword       string        `yaml:"sasl_password"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	DeliveryTimeout    time.Duration `yaml:"delivery_timeout"`
	MaxBufferedRecords int           `yaml:"max_buffered_records"`
	Linger             time.Duration `yaml:"linger"`
	Acks               string        `yaml:"acks"`
	Compression        string        `yaml:"compression"`
	LogLevel           string        `yaml:"log_level"`
}

// Validate reports configuration the client would reject.
func (cfg KafkaConfig) Validate() error {
	if len(cfg.Brokers) == 0 {
		return exception.ErrNoBrokers
	}
	switch strings.ToUpper(cfg.SecurityProtocol) {
	case "", SecurityPlaintext, SecuritySSL, SecuritySASLPlaintext, SecuritySASLSSL:
	default:
		return errors.Wrapf(exception.ErrInvalidConfig, "unsupported security protocol %q", cfg.SecurityProtocol)
	}
	if cfg.usesSASL() {
		if m := strings.ToUpper(cfg.SASLMechanism); m != "" && m != "PLAIN" {
			return errors.Wrapf(exception.ErrInvalidConfig, "unsupported sasl mechanism %q", cfg.SASLMechanism)
		}
		if cfg.SASLUsername == "" || cfg.SASLPassword == "" {
			return errors.Wrap(exception.ErrInvalidConfig, "sasl username and password are required")
		}
	}
	switch strings.ToLower(cfg.Acks) {
	case "", AcksAll, AcksLeader, AcksNone:
	default:
		return errors.Wrapf(exception.ErrInvalidConfig, "unsupported acks %q", cfg.Acks)
	}
	switch strings.ToLower(cfg.Compression) {
	case "", "none", "snappy", "gzip", "lz4", "zstd":
	default:
		return errors.Wrapf(exception.ErrInvalidConfig, "unsupported compression %q", cfg.Compression)
	}
	if cfg.DeliveryTimeout < 0 || cfg.MaxBufferedRecords < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "negative kafka limit")
	}
	return nil
}

func (cfg KafkaConfig) usesSASL() bool {
	p := strings.ToUpper(cfg.SecurityProtocol)
	return p == SecuritySASLPlaintext || p == SecuritySASLSSL
}

func (cfg KafkaConfig) usesTLS() bool {
	p := strings.ToUpper(cfg.SecurityProtocol)
	return p == SecuritySSL || p == SecuritySASLSSL
}

func (cfg KafkaConfig) options() []kgo.Opt {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	timeout := cfg.DeliveryTimeout
	if timeout == 0 {
		timeout = DefaultDeliveryTimeout
	}
	buffered := cfg.MaxBufferedRecords
	if buffered == 0 {
		buffered = DefaultMaxBufferedRecords
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.RecordDeliveryTimeout(timeout),
		kgo.MaxBufferedRecords(buffered),
		kgo.WithLogger(newKgoLogger(parseLogLevel(cfg.LogLevel))),
	}

	if cfg.usesTLS() {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}))
	}
	if cfg.usesSASL() {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.SASLUsername,
			Pass: cfg.SASLPassword,
		}.AsMechanism()))
	}
	if cfg.Linger > 0 {
		opts = append(opts, kgo.ProducerLinger(cfg.Linger))
	}

	// idempotent writes require acks from all in-sync replicas
	switch strings.ToLower(cfg.Acks) {
	case AcksLeader:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case AcksNone:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}

	switch strings.ToLower(cfg.Compression) {
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	default:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.NoCompression()))
	}

	return opts
}

func parseLogLevel(level string) kgo.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return kgo.LogLevelDebug
	case "info":
		return kgo.LogLevelInfo
	case "error":
		return kgo.LogLevelError
	case "none":
		return kgo.LogLevelNone
	default:
		return kgo.LogLevelWarn
	}
}

// Producer is a Broker backed by a franz-go client. Records are partitioned
// by key with the client's default partitioner.
type Producer struct {
	client kafkaClient
	closed atomic.Bool
}

var _ Broker = (*Producer)(nil)

// NewProducer validates cfg and creates the client. The client connects
// lazily on the first produce.
func NewProducer(cfg KafkaConfig) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(cfg.options()...)
	if err != nil {
		return nil, errors.Wrap(err, "new kafka client").With("brokers", cfg.Brokers)
	}
	logs.Infof("kafka producer ready, brokers: %v", cfg.Brokers)
	return newProducer(client), nil
}

func newProducer(client kafkaClient) *Producer {
	return &Producer{client: client}
}

func (p *Producer) Send(ctx context.Context, rec Record, done func(error)) {
	if p.closed.Load() {
		done(exception.ErrBrokerClosed)
		return
	}

	record := &kgo.Record{
		Topic: rec.Topic,
		Key:   []byte(rec.Key),
		Value: rec.Value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			done(errors.Wrapf(err, "produce to %s", rec.Topic).With("key", rec.Key))
			return
		}
		done(nil)
	})
}

// Buffered returns the number of records waiting in the client.
func (p *Producer) Buffered() int64 {
	return p.client.BufferedProduceRecords()
}

func (p *Producer) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return errors.Wrap(err, "flush kafka producer")
	}
	return nil
}
