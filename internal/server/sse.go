package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mayhapottabi/docchat/internal/rag"
)

// sseEvent is the JSON payload of one "data:" line.
type sseEvent struct {
	Token *string `json:"token,omitempty"`
	Done  bool    `json:"done,omitempty"`
	Error string  `json:"error,omitempty"`
}

// sseSink writes answer events as server-sent events, flushing after each.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

var _ rag.EventSink = (*sseSink)(nil)

// startSSE commits the response to an event stream. No JSON error can be
// sent after this.
func startSSE(w http.ResponseWriter) *sseSink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()
	return &sseSink{w: w, rc: rc}
}

func (s *sseSink) Send(ev rag.Event) error {
	var payload sseEvent
	switch ev.Kind {
	case rag.EventToken:
		token := ev.Token
		payload.Token = &token
	case rag.EventDone:
		payload.Done = true
	case rag.EventError:
		payload.Error = ev.Message
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	return nil
}
