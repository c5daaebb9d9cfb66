package agent

// StreamEvent types emitted by RunStream and the streaming router. The
// transport layer serializes each one as a discrete SSE frame.
const (
	EventToken     = "token"
	EventSources   = "sources"
	EventTagResult = "tag_result"
	EventRouteInfo = "route_info"
	EventDone      = "done"
	EventError     = "error"
)

// StreamEvent is the tagged union flowing through streaming responses.
// Exactly one of Data / Sources / Result is populated depending on Type.
type StreamEvent struct {
	Type    string         `json:"type"`
	Data    string         `json:"data,omitempty"`
	Sources []Source       `json:"sources,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

// Source points at a retrieved chunk that backed an answer. Content is
// truncated by the producer before it gets here.
type Source struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}
