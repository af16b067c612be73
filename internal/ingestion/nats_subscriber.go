package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// RecordStream is the JetStream stream holding inbound records.
	RecordStream = "TX_LEDGER_RECORDS"
	// RecordSubject is the subject producers publish records to.
	RecordSubject = "tx.ledger.records"
	// recordConsumer is the durable consumer name for this service.
	recordConsumer = "txledger-records"
)

// NATSSubscriber pulls transaction records from JetStream and feeds
// them into the raw channel for decoding. One subject, one durable
// consumer: ordering inside the stream is the engine's input order for
// the streamed path.
type NATSSubscriber struct {
	js         jetstream.JetStream
	recordChan chan<- RawRecord
	log        zerolog.Logger
	consumer   jetstream.ConsumeContext
}

func NewNATSSubscriber(js jetstream.JetStream, recordChan chan<- RawRecord, log zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:         js,
		recordChan: recordChan,
		log:        log,
	}
}

// Subscribe creates the durable consumer and starts delivery. Messages
// use explicit ACK: a record is acked only after it is queued for the
// engine, naked when the queue handoff loses to shutdown.
func (ns *NATSSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, RecordStream, jetstream.ConsumerConfig{
		Durable:       recordConsumer,
		FilterSubject: RecordSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", recordConsumer, err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawRecord{
			Source:   "nats",
			Data:     msg.Data(),
			Received: time.Now(),
			AckFunc:  func() { msg.Ack() },
			NakFunc:  func() { msg.Nak() },
			TermFunc: func() { msg.Term() },
		}

		select {
		case ns.recordChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", recordConsumer, err)
	}

	ns.consumer = consumerContext
	ns.log.Info().Str("subject", RecordSubject).Str("consumer", recordConsumer).
		Msg("subscribed to record stream")
	return nil
}

// EnsureStreams creates the inbound record stream if it doesn't exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      RecordStream,
		Subjects:  []string{RecordSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", RecordStream, err)
	}
	return nil
}

// Stop gracefully stops delivery.
func (ns *NATSSubscriber) Stop() {
	if ns.consumer != nil {
		ns.consumer.Stop()
	}
	ns.log.Info().Msg("record subscriber stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
