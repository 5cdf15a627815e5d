package document

import "errors"

var (
	// ErrPDFNotFound indicates the configured PDF file does not exist.
	ErrPDFNotFound = errors.New("PDF não encontrado")

	// ErrNotAFile indicates the PDF path names a directory or other non-regular file.
	ErrNotAFile = errors.New("PDF path is not a regular file")

	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidChunkOverlap indicates an overlap that is negative or not smaller than the chunk size.
	ErrInvalidChunkOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)
