package domain

import "errors"

// Failure categories of the indexing and retrieval subsystem. Producers wrap
// these with fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrUnreadableDocument  = errors.New("document could not be read")
	ErrEmptyDocument       = errors.New("document has no extractable text")
	ErrEmptyChunkSet       = errors.New("document produced no chunks")
	ErrIndexBuild          = errors.New("index build failed")
	ErrSearch              = errors.New("index search failed")
	ErrInvalidCollection   = errors.New("invalid collection name")
	ErrEmbedderMismatch    = errors.New("index was built with a different embedder")
)
