// Package ingestion parses structured course documents and splits lesson text
// into overlapping, sentence-bounded chunks ready for embedding.
package ingestion

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	sentenceEnd   = regexp.MustCompile(`[.!?]+(?:\s+|\z)`)
)

// Chunker splits text at sentence boundaries into chunks of at most maxSize
// characters, with consecutive chunks overlapping by roughly overlap
// characters of trailing sentences. Output is deterministic.
type Chunker struct {
	maxSize int
	overlap int
}

func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if maxSize <= overlap {
		return nil, fmt.Errorf("chunk size %d must exceed overlap %d", maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split returns the ordered chunks for text. Empty or whitespace-only input
// yields nil. A single sentence longer than maxSize is emitted whole rather
// than cut mid-sentence.
func (c *Chunker) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		size := 0
		j := i
		for j < len(sentences) {
			next := len(sentences[j])
			if size > 0 {
				next++ // joining space
			}
			if size+next > c.maxSize && j > i {
				break
			}
			size += next
			j++
		}

		chunks = append(chunks, strings.Join(sentences[i:j], " "))
		if j >= len(sentences) {
			break
		}

		// Re-include trailing sentences until the overlap budget is met,
		// but always advance past the previous chunk's first sentence.
		next := j
		carried := 0
		for next > i+1 && carried < c.overlap {
			carried += len(sentences[next-1])
			next--
		}
		i = next
	}

	return chunks
}

// splitSentences normalizes whitespace and cuts at terminal punctuation
// followed by whitespace or end of text. Trailing text without a terminator
// still forms a sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if sentence := strings.TrimSpace(text[start:loc[1]]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = loc[1]
	}
	if start < len(text) {
		if sentence := strings.TrimSpace(text[start:]); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}

	return sentences
}
