package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"TxLedger/internal/ledger"
)

// Source yields decoded records in stream order, ending with io.EOF.
// codec.Decoder is the canonical implementation.
type Source interface {
	Next() (ledger.Record, error)
}

// Producer drives one or more sources into the channel sequentially.
// A decode error is fatal for the whole run: the producer stops at the
// first bad record, closes the channel so the consumer drains what was
// already queued, and reports the error to the caller.
type Producer struct {
	ch  *Channel
	log zerolog.Logger
}

func NewProducer(ch *Channel, log zerolog.Logger) *Producer {
	return &Producer{ch: ch, log: log}
}

// Run decodes every source in order into the channel, then closes it.
// Sources share one record stream: tx uniqueness and dispute references
// span source boundaries.
func (p *Producer) Run(ctx context.Context, sources ...Source) error {
	defer p.ch.Close()

	produced := 0
	for i, src := range sources {
		for {
			rec, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				p.log.Error().Err(err).Int("source", i).Int("produced", produced).
					Msg("decode failed, aborting stream")
				return fmt.Errorf("decode source %d: %w", i, err)
			}

			if err := p.ch.Send(ctx, rec); err != nil {
				return fmt.Errorf("send record tx=%d: %w", rec.Tx, err)
			}
			produced++
		}
	}

	p.log.Debug().Int("produced", produced).Int("sources", len(sources)).
		Msg("stream exhausted")
	return nil
}
