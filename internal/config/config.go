package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gopkg.in/yaml.v3"

	"market-relay/internal/broker"
	"market-relay/internal/model"
	"market-relay/internal/model/enum"
	"market-relay/internal/obs"
	"market-relay/internal/server"
	"market-relay/pkg/conn"
	"market-relay/pkg/exception"
	"market-relay/pkg/websocket"
)

const (
	DefaultPath       = "config/local.yaml"
	DefaultBaseURL    = "wss://socket.polygon.io/stocks"
	DefaultServerHost = "localhost"
	DefaultServerPort = 8888
	DefaultCmdBuffer  = 1024

	envPrefix = "APP_"
)

const (
	BrokerKafka  = "kafka"
	BrokerMemory = "memory"
)

type Config struct {
	Log       LogConfig           `yaml:"log"`
	Polygon   PolygonConfig       `yaml:"polygon"`
	Kafka     KafkaConfig         `yaml:"kafka"`
	Broker    BrokerConfig        `yaml:"broker"`
	Server    server.Config       `yaml:"server"`
	Sentry    obs.SentryConfig    `yaml:"sentry"`
	Profiling obs.ProfilingConfig `yaml:"profiling"`
	Store     conn.Option         `yaml:"store"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PolygonConfig struct {
	BaseURL          string            `yaml:"base_url"`
	KeyID            string            `yaml:"key_id"`
	Tickers          []string          `yaml:"tickers"`
	Quotes           bool              `yaml:"quotes"`
	Trades           bool              `yaml:"trades"`
	SecondAggregates bool              `yaml:"second_aggregates"`
	MinuteAggregates bool              `yaml:"minute_aggregates"`
	MaxRetries       int               `yaml:"max_retries"`
	Backoff          websocket.Backoff `yaml:"backoff"`
}

// KafkaConfig is the producer config plus the relay's in-flight bound.
type KafkaConfig struct {
	broker.KafkaConfig `yaml:",inline"`
	MaxInFlight        int `yaml:"max_in_flight"`
}

type BrokerConfig struct {
	Kind string `yaml:"kind"`
}

// Load reads the YAML file at path and applies APP_ environment overrides.
// A missing file is not an error: the relay can run from the environment
// alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(exception.ErrInvalidConfig, "parse %s: %s", path, err)
		}
	case os.IsNotExist(err):
		logs.Warnf("config file %s not found, using environment only", path)
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Polygon.BaseURL == "" {
		c.Polygon.BaseURL = DefaultBaseURL
	}
	if c.Broker.Kind == "" {
		c.Broker.Kind = BrokerKafka
	}
	if c.Kafka.MaxBufferedRecords == 0 {
		c.Kafka.MaxBufferedRecords = broker.DefaultMaxBufferedRecords
	}
	if c.Kafka.DeliveryTimeout == 0 {
		c.Kafka.DeliveryTimeout = broker.DefaultDeliveryTimeout
	}
	if c.Kafka.MaxInFlight == 0 {
		c.Kafka.MaxInFlight = c.Kafka.MaxBufferedRecords / 10
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.CommandBuffer == 0 {
		c.Server.CommandBuffer = DefaultCmdBuffer
	}
}

// Validate rejects configuration the relay cannot start with.
func (c *Config) Validate() error {
	if c.Polygon.KeyID == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "polygon.key_id is required")
	}
	if c.Polygon.BaseURL == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "polygon.base_url is required")
	}
	if len(c.EventClasses()) == 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "at least one event class must be enabled")
	}
	if c.Polygon.MaxRetries < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "polygon.max_retries cannot be negative")
	}
	if c.Kafka.MaxInFlight <= 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "kafka.max_in_flight must be positive, got %d", c.Kafka.MaxInFlight)
	}

	switch c.Broker.Kind {
	case BrokerKafka:
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	case BrokerMemory:
	default:
		return errors.Wrapf(exception.ErrInvalidConfig, "unknown broker.kind %q", c.Broker.Kind)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Wrapf(exception.ErrInvalidConfig, "invalid server.port %d", c.Server.Port)
	}
	if c.Server.CommandBuffer < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "server.command_buffer cannot be negative")
	}
	return nil
}

// EventClasses returns the enabled classes in subscribe order.
func (c *Config) EventClasses() []enum.EventClass {
	enabled := map[enum.EventClass]bool{
		enum.EventClassQuote:           c.Polygon.Quotes,
		enum.EventClassTrade:           c.Polygon.Trades,
		enum.EventClassSecondAggregate: c.Polygon.SecondAggregates,
		enum.EventClassMinuteAggregate: c.Polygon.MinuteAggregates,
	}

	classes := make([]enum.EventClass, 0, len(enabled))
	for _, class := range enum.EventClasses() {
		if enabled[class] {
			classes = append(classes, class)
		}
	}
	return classes
}

// Subscriptions expands enabled classes and tickers, class-major.
func (c *Config) Subscriptions() []model.Subscription {
	classes := c.EventClasses()
	subs := make([]model.Subscription, 0, len(classes)*len(c.Polygon.Tickers))
	for _, class := range classes {
		logs.Debugf("subscribing to %s", class.Name())
		for _, ticker := range c.Polygon.Tickers {
			sub := model.Subscription{Class: class, Ticker: strings.TrimSpace(ticker)}
			if sub.IsValid() {
				subs = append(subs, sub)
			}
		}
	}
	return subs
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	var err error
	flag := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok && err == nil {
			b, parseErr := strconv.ParseBool(v)
			if parseErr != nil {
				err = errors.Wrapf(exception.ErrInvalidConfig, "%s%s: %s", envPrefix, key, parseErr)
				return
			}
			*dst = b
		}
	}
	number := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok && err == nil {
			n, parseErr := strconv.Atoi(v)
			if parseErr != nil {
				err = errors.Wrapf(exception.ErrInvalidConfig, "%s%s: %s", envPrefix, key, parseErr)
				return
			}
			*dst = n
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("POLYGON_BASE_URL", &c.Polygon.BaseURL)
	str("POLYGON_KEY_ID", &c.Polygon.KeyID)
	list("POLYGON_TICKERS", &c.Polygon.Tickers)
	flag("POLYGON_QUOTES", &c.Polygon.Quotes)
	flag("POLYGON_TRADES", &c.Polygon.Trades)
	flag("POLYGON_SECOND_AGGREGATES", &c.Polygon.SecondAggregates)
	flag("POLYGON_MINUTE_AGGREGATES", &c.Polygon.MinuteAggregates)
	number("POLYGON_MAX_RETRIES", &c.Polygon.MaxRetries)

	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_CLIENT_ID", &c.Kafka.ClientID)
	str("KAFKA_SECURITY_PROTOCOL", &c.Kafka.SecurityProtocol)
	str("KAFKA_SASL_MECHANISM", &c.Kafka.SASLMechanism)
	str("KAFKA_SASL_USERNAME", &c.Kafka.SASLUsername)
	str("KAFKA_SASL_PASSWORD", &c.Kafka.SASLPassword)
	str("KAFKA_ACKS", &c.Kafka.Acks)
	str("KAFKA_COMPRESSION", &c.Kafka.Compression)
	number("KAFKA_MAX_IN_FLIGHT", &c.Kafka.MaxInFlight)

	str("BROKER_KIND", &c.Broker.Kind)

	str("SERVER_HOST", &c.Server.Host)
	number("SERVER_PORT", &c.Server.Port)

	str("SENTRY_DSN", &c.Sentry.DSN)
	str("SENTRY_ENVIRONMENT", &c.Sentry.Environment)

	flag("PROFILING_ENABLED", &c.Profiling.Enabled)
	str("PROFILING_SERVER_ADDRESS", &c.Profiling.ServerAddress)

	str("STORE_DSN", &c.Store.DSN)

	return err
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Logger builds the process logger. Unknown formats fall back to console.
func (l LogConfig) Logger() logs.Logger {
	format := logs.FormatConsole
	switch strings.ToLower(l.Format) {
	case "json":
		format = logs.FormatJSON
	case "text":
		format = logs.FormatText
	}
	return logs.New(logs.NewLevel(l.Level), &logs.Option{Format: format, Output: os.Stdout})
}

// Debug reports whether debug logging is enabled.
func (l LogConfig) Debug() bool {
	return logs.NewLevel(l.Level) == logs.LevelDebug
}
