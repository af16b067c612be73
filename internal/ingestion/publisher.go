package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
	"TxLedger/internal/observability"
)

const (
	// OutcomeStream is the JetStream stream for outcome events.
	OutcomeStream = "TX_LEDGER_OUTCOMES"
	// outcomeSubjectPrefix is completed with the snake_case status.
	outcomeSubjectPrefix = "tx.ledger.outcomes."
)

// OutcomeEvent is published for every record the engine processed,
// applied or rejected, so downstream consumers see the full audit
// stream without querying the log.
type OutcomeEvent struct {
	EventID      string        `json:"event_id"`
	Sequence     int64         `json:"sequence"`
	Type         string        `json:"type"`
	Client       uint16        `json:"client"`
	Tx           uint32        `json:"tx"`
	Amount       *money.Amount `json:"amount,omitempty"`
	Status       string        `json:"status"`
	DisputeState string        `json:"dispute_state,omitempty"`
	StateHash    string        `json:"state_hash"`
	Timestamp    time.Time     `json:"timestamp"`
}

// OutcomeFromEntry builds the publishable event for a log entry.
func OutcomeFromEntry(e *ledger.Entry) OutcomeEvent {
	evt := OutcomeEvent{
		EventID:   uuid.NewString(),
		Sequence:  e.Sequence,
		Type:      e.Kind.String(),
		Client:    e.Client,
		Tx:        e.Tx,
		Amount:    e.Amount,
		Status:    e.Status.String(),
		StateHash: hex.EncodeToString(e.StateHash[:]),
		Timestamp: time.Now(),
	}
	if e.Kind.Monetary() && e.Status == ledger.StatusApplied {
		evt.DisputeState = e.Dispute.String()
	}
	return evt
}

// OutcomePublisher is the outbound sink for outcome events. NATS and
// Kafka implementations are selected by daemon config.
type OutcomePublisher interface {
	Run(ctx context.Context) error
}

// NATSOutcomePublisher publishes outcome events to JetStream on
// tx.ledger.outcomes.{status}.
type NATSOutcomePublisher struct {
	js        jetstream.JetStream
	inputChan <-chan OutcomeEvent
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewNATSOutcomePublisher(
	js jetstream.JetStream,
	inputChan <-chan OutcomeEvent,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *NATSOutcomePublisher {
	return &NATSOutcomePublisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
		metrics:   metrics,
	}
}

// Run drains the input channel and publishes until the channel closes
// or ctx is cancelled. Publish failures are non-fatal: the persisted
// log remains the source of truth for anything a consumer missed.
func (op *NATSOutcomePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, evt); err != nil {
				op.log.Warn().Err(err).Int64("sequence", evt.Sequence).
					Msg("outcome publish failed")
				continue
			}
			if op.metrics != nil {
				op.metrics.OutcomesPublished.WithLabelValues("nats", evt.Status).Inc()
			}
		}
	}
}

func (op *NATSOutcomePublisher) publish(ctx context.Context, evt OutcomeEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	_, err = op.js.Publish(ctx, outcomeSubjectPrefix+evt.Status, data)
	return err
}

// EnsureOutcomeStream creates the outbound outcome stream.
func EnsureOutcomeStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      OutcomeStream,
		Subjects:  []string{outcomeSubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outcome stream: %w", err)
	}
	return nil
}
