package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"market-relay/internal/broker"
)

const namespace = "relay"

var (
	receivedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "messages_received_total"),
		"Decoded upstream records by event type.",
		[]string{"event"}, nil,
	)
	decodeErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "decode_errors_total"),
		"Upstream records that failed to decode.",
		nil, nil,
	)
	serializeErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "serialize_errors_total"),
		"Records that failed to serialize for the broker.",
		nil, nil,
	)
	deliveriesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "deliveries_total"),
		"Broker deliveries by outcome.",
		[]string{"outcome"}, nil,
	)
	reconnectsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "reconnects_total"),
		"Times a streaming upstream connection was lost and reconnect began.",
		nil, nil,
	)
	commandsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "commands_total"),
		"Control commands applied.",
		nil, nil,
	)
	inFlightDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "in_flight"),
		"Records handed to the broker and not yet resolved.",
		nil, nil,
	)
	stateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "connection_state"),
		"Current upstream connection state.",
		[]string{"state"}, nil,
	)
	brokerBufferedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "broker", "buffered_records"),
		"Records buffered in the broker client awaiting delivery.",
		nil, nil,
	)
	ackLatencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "ack_latency_seconds"),
		"Time from send to broker acknowledgment.",
		nil, nil,
	)
)

// Buffered reports how many records a broker client holds. *broker.Producer
// implements it.
type Buffered interface {
	Buffered() int64
}

// Collector exposes Metrics to a prometheus registry.
type Collector struct {
	m        *Metrics
	buffered Buffered
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector exports m. buffered may be nil when the broker has no client
// side buffer.
func NewCollector(m *Metrics, buffered Buffered) *Collector {
	return &Collector{m: m, buffered: buffered}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- receivedDesc
	ch <- decodeErrorsDesc
	ch <- serializeErrorsDesc
	ch <- deliveriesDesc
	ch <- reconnectsDesc
	ch <- commandsDesc
	ch <- inFlightDesc
	ch <- stateDesc
	ch <- ackLatencyDesc
	if c.buffered != nil {
		ch <- brokerBufferedDesc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()

	for _, ev := range eventTypes {
		ch <- prometheus.MustNewConstMetric(receivedDesc, prometheus.CounterValue, float64(s.Received[ev]), string(ev))
	}
	ch <- prometheus.MustNewConstMetric(decodeErrorsDesc, prometheus.CounterValue, float64(s.DecodeErrors))
	ch <- prometheus.MustNewConstMetric(serializeErrorsDesc, prometheus.CounterValue, float64(s.SerializeErrors))
	ch <- prometheus.MustNewConstMetric(deliveriesDesc, prometheus.CounterValue, float64(s.Acked), broker.Acked.String())
	ch <- prometheus.MustNewConstMetric(deliveriesDesc, prometheus.CounterValue, float64(s.Failed), broker.Failed.String())
	ch <- prometheus.MustNewConstMetric(reconnectsDesc, prometheus.CounterValue, float64(s.Reconnects))
	ch <- prometheus.MustNewConstMetric(commandsDesc, prometheus.CounterValue, float64(s.Commands))
	ch <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue, float64(s.InFlight))
	if s.State != "" {
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, 1, s.State)
	}
	ch <- prometheus.MustNewConstSummary(ackLatencyDesc, s.AckLatency.Count, s.AckLatency.Sum.Seconds(), nil)
	if c.buffered != nil {
		ch <- prometheus.MustNewConstMetric(brokerBufferedDesc, prometheus.GaugeValue, float64(c.buffered.Buffered()))
	}
}

// NewRegistry returns a registry holding the relay collector and the Go
// runtime collectors.
func NewRegistry(m *Metrics, buffered Buffered) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(m, buffered),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
