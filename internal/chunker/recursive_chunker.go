package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"mathrag/internal/domain"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits each page with a recursive character splitter so
// that every chunk keeps the page it came from.
type RecursiveChunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// NewRecursiveChunker validates the size/overlap pair and builds the splitter.
func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if size <= 0 {
		return nil, errors.New("chunker: chunk size must be greater than zero")
	}
	if overlap < 0 {
		return nil, errors.New("chunker: chunk overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", overlap, size)
	}
	return &RecursiveChunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Chunk returns the chunks of every page in page order. Pages without text
// contribute nothing.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range document.Pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		segments, err := c.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("chunker: split page %d of %s: %w", page.Number, document.FileName, err)
		}
		for _, segment := range segments {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			chunks = append(chunks, newChunk(document.FileName, page.Number, len(chunks), segment))
		}
	}
	return chunks, nil
}

func newChunk(fileName string, page, index int, text string) domain.Chunk {
	return domain.Chunk{
		ID:       chunkID(fileName, page, index),
		Text:     text,
		Page:     page,
		FileName: fileName,
		Index:    index,
	}
}

func chunkID(fileName string, page, index int) string {
	h := sha1.Sum([]byte(fileName + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(h[:8])
}
