package knowledge

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitterValidation(t *testing.T) {
	if _, err := NewSplitter(0, 0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
	if _, err := NewSplitter(100, 100); err == nil {
		t.Fatalf("expected error for overlap >= size")
	}
	if _, err := NewSplitter(100, -1); err == nil {
		t.Fatalf("expected error for negative overlap")
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := NewSplitter(500, 50)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := s.Split("짧은 문서입니다.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitEmptyText(t *testing.T) {
	s, err := NewSplitter(500, 50)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	if got := s.Split("   \n\n  "); got != nil {
		t.Fatalf("expected nil for whitespace input, got %v", got)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s, err := NewSplitter(30, 5)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	text := "first paragraph here\n\nsecond paragraph here\n\nthird paragraph here"
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if !strings.Contains(text, chunk) {
			t.Fatalf("chunk is not a substring of the input: %q", chunk)
		}
	}
}

// Chunks must cover the original text without gaps: each chunk is an exact
// substring and consecutive chunks overlap or touch.
func TestSplitRoundTripCoverage(t *testing.T) {
	s, err := NewSplitter(500, 50)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}

	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%d번째 단락: 회사 생활 안내 문서의 내용입니다. 신입사원은 이 단락을 숙지해야 합니다. ", i)
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long input, got %d", len(chunks))
	}

	coveredEnd := 0
	searchFrom := 0
	for i, chunk := range chunks {
		pos := strings.Index(text[searchFrom:], chunk)
		if pos < 0 {
			t.Fatalf("chunk %d is not a substring of the input", i)
		}
		start := searchFrom + pos
		if start > coveredEnd {
			t.Fatalf("gap before chunk %d: coverage ends at %d, chunk starts at %d", i, coveredEnd, start)
		}
		end := start + len(chunk)
		if end > coveredEnd {
			coveredEnd = end
		}
		searchFrom = start + 1
	}
	if coveredEnd != len(text) {
		t.Fatalf("coverage ends at %d, text length is %d", coveredEnd, len(text))
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s, err := NewSplitter(100, 10)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}

	text := strings.Repeat("가나다라마바사 아자차카타파하. ", 60)
	for i, chunk := range s.Split(text) {
		if utf8.RuneCountInString(chunk) > 110 {
			t.Fatalf("chunk %d exceeds size budget: %d runes", i, utf8.RuneCountInString(chunk))
		}
	}
}

func TestHardSplitUnbrokenText(t *testing.T) {
	s, err := NewSplitter(10, 2)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}

	text := strings.Repeat("가", 25)
	chunks := s.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		curr := []rune(chunks[i])
		if string(prev[len(prev)-2:]) != string(curr[:2]) {
			t.Fatalf("chunks %d and %d do not overlap", i-1, i)
		}
	}
}
