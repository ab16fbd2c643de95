package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// sseWriter streams server-sent events to one response.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, apperr.Server("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, nil
}

// Write sends one named event with a JSON data payload.
func (s *sseWriter) Write(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// sseEvent is the wire shape of one session event: the event type plus
// the payload fields flattened next to the event id and timestamp.
type sseEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// toSSEEvent converts a session event to its wire shape. Timestamps are
// epoch seconds.
func toSSEEvent(event *models.Event) (*sseEvent, error) {
	data := map[string]any{
		"event_id":   event.ID,
		"created_at": event.CreatedAt.Unix(),
	}

	var payload any
	switch event.Type {
	case models.EventTypePlan:
		payload = event.Plan
	case models.EventTypeTitle:
		payload = event.Title
	case models.EventTypeStep:
		payload = event.Step
	case models.EventTypeMessage:
		payload = event.Message
	case models.EventTypeTool:
		payload = event.Tool
	case models.EventTypeError:
		payload = event.Error
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			data[k] = v
		}
	}
	return &sseEvent{Event: string(event.Type), Data: data}, nil
}

// writeEvent maps and sends one session event.
func (s *sseWriter) writeEvent(event *models.Event) error {
	mapped, err := toSSEEvent(event)
	if err != nil {
		return err
	}
	return s.Write(mapped.Event, mapped.Data)
}
