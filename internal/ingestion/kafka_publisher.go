package ingestion

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"TxLedger/internal/observability"
)

// KafkaOutcomePublisher is the Kafka alternative to the NATS outcome
// sink. Messages are keyed by client ID so one client's outcomes land
// in one partition, preserving their relative order.
type KafkaOutcomePublisher struct {
	writer    *kafka.Writer
	inputChan <-chan OutcomeEvent
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewKafkaOutcomePublisher(
	brokers []string,
	topic string,
	inputChan <-chan OutcomeEvent,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *KafkaOutcomePublisher {
	return &KafkaOutcomePublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		inputChan: inputChan,
		log:       log,
		metrics:   metrics,
	}
}

// Run drains the input channel and publishes until the channel closes
// or ctx is cancelled.
func (kp *KafkaOutcomePublisher) Run(ctx context.Context) error {
	defer kp.writer.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-kp.inputChan:
			if !ok {
				return nil
			}

			if err := kp.publish(ctx, evt); err != nil {
				kp.log.Warn().Err(err).Int64("sequence", evt.Sequence).
					Msg("kafka outcome publish failed")
				continue
			}
			if kp.metrics != nil {
				kp.metrics.OutcomesPublished.WithLabelValues("kafka", evt.Status).Inc()
			}
		}
	}
}

func (kp *KafkaOutcomePublisher) publish(ctx context.Context, evt OutcomeEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	key := make([]byte, 2)
	binary.BigEndian.PutUint16(key, evt.Client)

	return kp.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: data,
	})
}
