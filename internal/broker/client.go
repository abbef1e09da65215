package broker

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
)

// kafkaClient is the part of *kgo.Client the producer uses.
type kafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
	BufferedProduceRecords() int64
}

var _ kafkaClient = (*kgo.Client)(nil)
