package search

import "context"

// Provider is a web search backend. Implementations return results ordered
// by relevance, best first.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Result is one search hit. Snippet is plain text, already stripped of
// markup by the backend.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Score   float64
}

// Options controls a single search call.
type Options struct {
	// MaxResults caps the number of hits. Zero means the provider default.
	MaxResults int
	// Depth selects basic vs advanced crawling on backends that support it.
	Depth string
}

const defaultMaxResults = 5

func (o Options) limit() int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return defaultMaxResults
}
