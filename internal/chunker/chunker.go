// Package chunker splits extracted document text into overlapping
// token-bounded segments with stable positional indices.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// DefaultTargetSize is the default chunk size in estimated tokens.
const DefaultTargetSize = 450

// DefaultOverlap is the default overlap between chunks in estimated tokens.
const DefaultOverlap = 75

// Chunker splits text into sentence-aligned chunks of roughly
// targetSize tokens. Chunking is deterministic: the same input always
// yields the same ordered chunk sequence.
type Chunker struct {
	targetSize int
	overlap    int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithTargetSize sets the target chunk size in tokens.
func WithTargetSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.targetSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed the target size
	if c.overlap >= c.targetSize {
		c.overlap = c.targetSize / 4
	}

	return c
}

// TargetSize returns the configured chunk size in tokens.
func (c *Chunker) TargetSize() int { return c.targetSize }

// Overlap returns the configured overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into the ordered chunk sequence for documentID.
// Empty or whitespace-only input produces zero chunks.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}

	sentences := splitSentences(cleaned)

	var chunks []domain.Chunk
	var current []string
	currentTokens := 0

	emit := func() {
		chunkText := strings.Join(current, " ")
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       chunkText,
			TokenCount: EstimateTokens(chunkText),
		})
	}

	for _, sentence := range sentences {
		tokens := EstimateTokens(sentence)

		// A single sentence over the budget is hard-split at the exact
		// token budget to guarantee progress and bounded chunk count.
		if tokens > c.targetSize {
			for _, piece := range hardSplit(sentence, c.targetSize) {
				pieceTokens := EstimateTokens(piece)
				if currentTokens+pieceTokens > c.targetSize && len(current) > 0 {
					emit()
					current, currentTokens = c.carryOverlap(current)
				}
				current = append(current, piece)
				currentTokens += pieceTokens
			}
			continue
		}

		if currentTokens+tokens > c.targetSize && len(current) > 0 {
			emit()
			current, currentTokens = c.carryOverlap(current)
		}

		current = append(current, sentence)
		currentTokens += tokens
	}

	if len(current) > 0 {
		emit()
	}

	return chunks
}

// carryOverlap seeds the next chunk with trailing sentences of the
// previous one, up to the overlap token budget. When even the last
// sentence alone exceeds the budget, a word-level tail of it is carried
// instead so consecutive chunks still share context.
func (c *Chunker) carryOverlap(previous []string) ([]string, int) {
	var carried []string
	tokens := 0

	for i := len(previous) - 1; i >= 0; i-- {
		t := EstimateTokens(previous[i])
		if tokens+t > c.overlap {
			break
		}
		carried = append([]string{previous[i]}, carried...)
		tokens += t
	}

	if len(carried) == 0 && c.overlap > 0 && len(previous) > 0 {
		if tail := tailWords(previous[len(previous)-1], c.overlap); tail != "" {
			return []string{tail}, EstimateTokens(tail)
		}
	}

	return carried, tokens
}

// tailWords returns the longest trailing word run of sentence that fits
// the token budget, or the trailing bytes of the final word when even a
// single word exceeds it.
func tailWords(sentence string, budget int) string {
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return ""
	}

	start := len(words)
	tokens := 0
	for i := len(words) - 1; i >= 0; i-- {
		t := EstimateTokens(words[i])
		if tokens+t > budget {
			break
		}
		start = i
		tokens += t
	}
	if start < len(words) {
		return strings.Join(words[start:], " ")
	}

	last := words[len(words)-1]
	maxBytes := budget * 4
	if len(last) <= maxBytes {
		return last
	}
	cut := len(last) - maxBytes
	for cut < len(last) && !utf8.RuneStart(last[cut]) {
		cut++
	}
	return last[cut:]
}

// EstimateTokens estimates the token count of text under a fixed
// policy: one token per four bytes, and never fewer tokens than words.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byBytes := (len(text) + 3) / 4
	byWords := len(strings.Fields(text))
	if byWords > byBytes {
		return byWords
	}
	return byBytes
}

// cleanText normalises line endings and collapses whitespace runs.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// splitSentences splits cleaned text at sentence terminators.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i == len(runes)-1 || runes[i+1] == ' ') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// hardSplit cuts an over-budget sentence into word-aligned pieces of at
// most budget tokens each. Single words longer than the budget are cut
// at the exact byte equivalent of the token budget.
func hardSplit(sentence string, budget int) []string {
	maxBytes := budget * 4

	var pieces []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, word := range strings.Fields(sentence) {
		for len(word) > maxBytes {
			flush()
			pieces = append(pieces, word[:maxBytes])
			word = word[maxBytes:]
		}
		if word == "" {
			continue
		}

		tokens := EstimateTokens(word)
		if currentTokens+tokens > budget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
		currentTokens += tokens
	}
	flush()

	return pieces
}
