package ingestion

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const maxIngestBody = 4 << 10

// HTTPIngest accepts transaction records on POST /transactions. It is
// the low-volume sibling of the NATS path: records are validated here
// and queued for the engine; the response acknowledges intake, not the
// apply outcome, which arrives on the outcome stream.
type HTTPIngest struct {
	recordChan chan<- ParsedRecord
	log        zerolog.Logger
}

func NewHTTPIngest(recordChan chan<- ParsedRecord, log zerolog.Logger) *HTTPIngest {
	return &HTTPIngest{recordChan: recordChan, log: log}
}

func (h *HTTPIngest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	parsed, err := ParseRawRecord(RawRecord{
		Source:   "http",
		Data:     body,
		Received: time.Now(),
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("rejected malformed ingest request")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A full engine channel blocks here: HTTP callers feel backpressure
	// as latency, same as the NATS path.
	select {
	case h.recordChan <- parsed:
	case <-r.Context().Done():
		writeJSONError(w, http.StatusServiceUnavailable, "intake cancelled")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tx":     parsed.Record.Tx,
		"client": parsed.Record.Client,
		"queued": true,
	})
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
