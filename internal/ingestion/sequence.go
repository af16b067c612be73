package ingestion

import (
	"fmt"
)

// SequenceTracker watches source sequences on the streamed intake per
// source. Producers that stamp sequences get gap and stale detection;
// records without one (sequence 0) pass through untracked.
// Not thread-safe: only the single ingest loop touches it.
type SequenceTracker struct {
	expectedNext map[string]int64
	gaps         map[string]int64
	stale        map[string]int64
}

func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{
		expectedNext: make(map[string]int64),
		gaps:         make(map[string]int64),
		stale:        make(map[string]int64),
	}
}

// Observe checks a source sequence against the expected next value.
// Stale deliveries (redelivered messages the engine already saw) return
// an error so the caller can ack-and-skip; gaps are counted but the
// record still flows through, since the engine itself never reorders.
func (st *SequenceTracker) Observe(source string, sourceSequence int64) error {
	if sourceSequence == 0 {
		return nil
	}

	expected, seen := st.expectedNext[source]
	if !seen {
		st.expectedNext[source] = sourceSequence + 1
		return nil
	}

	if sourceSequence < expected {
		st.stale[source]++
		return fmt.Errorf("stale delivery: source=%s, expected=%d, got=%d",
			source, expected, sourceSequence)
	}

	if sourceSequence > expected {
		st.gaps[source]++
	}

	st.expectedNext[source] = sourceSequence + 1
	return nil
}

// Gaps returns the gap count observed for a source.
func (st *SequenceTracker) Gaps(source string) int64 {
	return st.gaps[source]
}

// Stale returns the stale-delivery count observed for a source.
func (st *SequenceTracker) Stale(source string) int64 {
	return st.stale[source]
}
