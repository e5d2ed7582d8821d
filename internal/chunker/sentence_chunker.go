package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"mathrag/internal/domain"
	"mathrag/internal/textutil"
)

// SentenceChunker groups up to sentencesPerChunk sentences per chunk,
// repeating overlapSentences sentences between neighbours. A window closes
// early once another sentence would take it past maxSize runes, and a single
// sentence longer than maxSize is cut with the recursive splitter. It never
// crosses a page.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	maxSize           int
	splitter          textsplitter.RecursiveCharacter
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences, maxSize int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		maxSize:           maxSize,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(maxSize),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range document.Pages {
		sentences, err := c.boundedSentences(page.Text)
		if err != nil {
			return nil, fmt.Errorf("chunker: split page %d of %s: %w", page.Number, document.FileName, err)
		}
		i := 0
		for i < len(sentences) {
			end := c.windowEnd(sentences, i)
			text := strings.Join(sentences[i:end], " ")
			chunks = append(chunks, newChunk(document.FileName, page.Number, len(chunks), text))
			if end == len(sentences) {
				break
			}
			i = max(end-c.overlapSentences, i+1)
		}
	}
	return chunks, nil
}

// windowEnd returns the exclusive end of the window starting at start. The
// window always holds at least one sentence.
func (c *SentenceChunker) windowEnd(sentences []string, start int) int {
	size := utf8.RuneCountInString(sentences[start])
	end := start + 1
	for end < len(sentences) && end-start < c.sentencesPerChunk {
		next := size + 1 + utf8.RuneCountInString(sentences[end])
		if next > c.maxSize {
			break
		}
		size = next
		end++
	}
	return end
}

// boundedSentences splits text into sentences no longer than maxSize runes.
func (c *SentenceChunker) boundedSentences(text string) ([]string, error) {
	var out []string
	for _, s := range textutil.Sentences(text) {
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) <= c.maxSize {
			out = append(out, s)
			continue
		}
		parts, err := c.splitter.SplitText(s)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out, nil
}
