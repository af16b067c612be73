package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TxLedger/internal/observability"
)

// LogOutput is one engine entry headed for the persisted log: the row
// itself plus, for applied dispute-family entries, the forward
// transition on the target row.
type LogOutput struct {
	Row           EntryRow
	DisputeUpdate *DisputeUpdate
}

// Worker drains the persist channel and batch-writes to Postgres. The
// persist channel uses BLOCKING sends from the engine side, so if this
// worker falls behind, the pipeline stalls rather than losing entries.
type Worker struct {
	writer       *LogWriter
	inputChan    <-chan LogOutput
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan LogOutput,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Run batches incoming entries and flushes when the batch is full or
// the flush timeout expires. Blocks until the channel closes or ctx is
// cancelled; either way the tail batch is flushed before returning.
func (w *Worker) Run(ctx context.Context) error {
	entryBatch := make([]EntryRow, 0, w.batchSize)
	updateBatch := make([]DisputeUpdate, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	flushAndReset := func(flushCtx context.Context) {
		if len(entryBatch) == 0 {
			return
		}
		if err := w.flushWithRetry(flushCtx, entryBatch, updateBatch); err != nil {
			w.log.Error().Err(err).Int("entries", len(entryBatch)).Msg("batch flush failed")
		}
		entryBatch = entryBatch[:0]
		updateBatch = updateBatch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushAndReset(context.Background())
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				flushAndReset(context.Background())
				return nil
			}

			entryBatch = append(entryBatch, output.Row)
			if output.DisputeUpdate != nil {
				updateBatch = append(updateBatch, *output.DisputeUpdate)
			}

			if len(entryBatch) >= w.batchSize {
				flushAndReset(ctx)
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			flushAndReset(ctx)
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never
// drops entries: it retries until the write succeeds or shutdown forces
// one final attempt.
func (w *Worker) flushWithRetry(ctx context.Context, entries []EntryRow, updates []DisputeUpdate) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).
				Int("entries", len(entries)).Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), entries, updates); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, entries, updates)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("flush").Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, entries []EntryRow, updates []DisputeUpdate) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEntryBatch(ctx, tx, entries); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_entries").Inc()
		}
		return err
	}

	if err := w.writer.ApplyDisputeUpdates(ctx, tx, updates); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("dispute_updates").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(entries)))
		w.metrics.PersistEntriesWritten.Add(float64(len(entries)))
		if len(entries) > 0 {
			w.metrics.PersistLastSequence.Set(float64(entries[len(entries)-1].Sequence))
		}
	}

	return nil
}
