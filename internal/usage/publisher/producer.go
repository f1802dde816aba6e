// Package publisher streams usage events over Kafka: edge nodes produce,
// the reconciliation side consumes into the usage store.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"tollgate/internal/usage"
)

const headerReporter = "reporter"

// ProduceClient is the subset of *kgo.Client the producer uses.
type ProduceClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Producer is a usage.Sink writing one record per event, keyed by license
// so a license's events stay ordered within a partition.
type Producer struct {
	client ProduceClient
	topic  string
}

// NewProducer writes to topic; empty uses the client's default topic.
func NewProducer(client ProduceClient, topic string) *Producer {
	return &Producer{client: client, topic: topic}
}

// Append produces events and waits for acknowledgement.
func (p *Producer) Append(ctx context.Context, events []usage.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(usage.ReportFrom(e))
		if err != nil {
			return fmt.Errorf("encode usage event: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic:   p.topic,
			Key:     []byte(e.LicenseID.String()),
			Value:   value,
			Headers: []kgo.RecordHeader{{Key: headerReporter, Value: []byte(e.Reporter)}},
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce usage events: %w", err)
	}
	return nil
}
