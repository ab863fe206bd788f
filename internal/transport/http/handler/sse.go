package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// sseSink frames each snapshot as one server-sent event.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newSSESink writes the event-stream headers. Streams are long-lived, so the server
// write deadline is cleared for this response.
func newSSESink(w http.ResponseWriter) *sseSink {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()
	return &sseSink{w: w, rc: rc}
}

func (s *sseSink) Send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	return s.rc.Flush()
}
