package knowledge

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Separator preference, coarsest first: paragraph, line, sentence, space,
// then a hard character split when nothing else fits.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts document text into overlapping chunks. Sizes are measured in
// runes, not bytes, so Korean text is not penalized three-to-one.
//
// Every produced chunk is an exact substring of the input and consecutive
// chunks overlap, so reassembling them with overlap removed reproduces the
// original text.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if chunkOverlap < 0 {
		return nil, errors.New("chunk overlap must be non-negative")
	}
	if chunkOverlap >= chunkSize {
		return nil, errors.New("chunk overlap must be less than chunk size")
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split returns the chunks of text, best-effort aligned to the separator
// hierarchy. An empty or whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, defaultSeparators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardSplit(text)
	}

	pieces := splitKeepingSeparator(text, sep)

	var chunks []string
	var fitting []string
	flush := func() {
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting)...)
			fitting = nil
		}
	}
	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) <= s.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		flush()
		chunks = append(chunks, s.split(piece, rest)...)
	}
	flush()
	return chunks
}

// merge packs consecutive pieces into chunks of at most chunkSize runes,
// carrying the trailing pieces up to chunkOverlap runes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0
	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if total+pieceLen > s.chunkSize && total > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for total > s.chunkOverlap && len(window) > 0 {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += pieceLen
	}
	if total > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitKeepingSeparator splits text on sep with the separator left attached
// to the preceding piece, so the pieces partition the input exactly.
func splitKeepingSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
