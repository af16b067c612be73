package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"TxLedger/internal/ledger"
	"TxLedger/internal/observability"
)

// Consumer is the single goroutine allowed to call Engine.Apply. It
// drains the channel in FIFO order until the producer closes it, so no
// queued record is lost and no locking is needed around engine state.
type Consumer struct {
	engine  *ledger.Engine
	ch      *Channel
	log     zerolog.Logger
	metrics *observability.Metrics

	// onEntry, when set, observes every recorded entry after apply. The
	// daemon fans entries out to persistence, projection, and publish
	// channels through it; the batch CLI leaves it nil.
	onEntry func(*ledger.Entry)
}

func NewConsumer(engine *ledger.Engine, ch *Channel, log zerolog.Logger) *Consumer {
	return &Consumer{engine: engine, ch: ch, log: log}
}

// WithMetrics attaches Prometheus metrics to the apply loop.
func (c *Consumer) WithMetrics(m *observability.Metrics) *Consumer {
	c.metrics = m
	return c
}

// WithEntryObserver sets the per-entry callback.
func (c *Consumer) WithEntryObserver(fn func(*ledger.Entry)) *Consumer {
	c.onEntry = fn
	return c
}

// Run applies records until the channel closes and drains, or ctx is
// cancelled. Business-rule rejections are logged and counted, never
// returned: only cancellation ends the run early.
func (c *Consumer) Run(ctx context.Context) error {
	applied := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-c.ch.Records():
			if !ok {
				c.log.Debug().Int("records", applied).Msg("channel drained")
				return nil
			}

			c.apply(rec)
			applied++
		}
	}
}

func (c *Consumer) apply(rec ledger.Record) {
	start := time.Now()
	entry := c.engine.Apply(rec)

	if c.metrics != nil {
		c.metrics.ApplyDuration.WithLabelValues(rec.Kind.String()).
			Observe(time.Since(start).Seconds())
		c.metrics.RecordsProcessed.WithLabelValues(rec.Kind.String(), entry.Status.String()).Inc()
		c.metrics.EngineSequence.Set(float64(c.engine.GetSequence()))
		c.metrics.SetChannelMetrics("records", c.ch.Len(), c.ch.Cap())
	}

	if entry.Status != ledger.StatusApplied {
		c.log.Debug().
			Str("kind", rec.Kind.String()).
			Uint16("client", rec.Client).
			Uint32("tx", rec.Tx).
			Str("status", entry.Status.String()).
			Msg("record rejected")
	}

	if c.onEntry != nil {
		c.onEntry(entry)
	}
}
