package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cginside/hobi/internal/agent"
)

// sseWriter frames StreamEvents as server-sent events in the wire shape the
// frontend consumes: token carries "content", route_info carries "route",
// tag_result carries "data".
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(writer http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	return &sseWriter{writer: writer, flusher: flusher}, nil
}

func (s *sseWriter) WriteEvent(ev agent.StreamEvent) error {
	frame := map[string]any{"type": ev.Type}
	switch ev.Type {
	case agent.EventToken:
		frame["content"] = ev.Data
	case agent.EventRouteInfo:
		frame["route"] = ev.Data
	case agent.EventSources:
		frame["sources"] = ev.Sources
	case agent.EventTagResult:
		frame["data"] = ev.Result
	case agent.EventError:
		if ev.Data != "" {
			frame["data"] = ev.Data
		}
	}
	return s.send(frame)
}

// WriteSentinel terminates the stream with the data: [DONE] marker.
func (s *sseWriter) WriteSentinel() error {
	if _, err := fmt.Fprintf(s.writer, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
