// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/poiesic/docrag/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// Document is a split PDF ready for embedding.
type Document struct {
	Source      string
	Fingerprint string // BLAKE2b-256 of the file bytes
	Pages       int
	Chunks      []*core.Chunk
}

// PDFLoader reads a PDF from disk and splits its text into chunks.
type PDFLoader struct {
	path     string
	password string
	splitter *Splitter
	logger   *slog.Logger
}

// LoaderOption configures a PDFLoader.
type LoaderOption func(*PDFLoader)

// WithPassword sets the password for encrypted PDFs.
func WithPassword(password string) LoaderOption {
	return func(l *PDFLoader) {
		l.password = password
	}
}

// WithLoaderLogger sets a custom logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *PDFLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewPDFLoader creates a loader for the PDF at path using splitter.
func NewPDFLoader(path string, splitter *Splitter, opts ...LoaderOption) *PDFLoader {
	l := &PDFLoader{
		path:     path,
		splitter: splitter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "pdf-loader", "path", path)
	return l
}

// Path returns the PDF path.
func (l *PDFLoader) Path() string {
	return l.path
}

// Load reads, fingerprints and splits the PDF. A missing file yields an
// error wrapping ErrPDFNotFound.
func (l *PDFLoader) Load(ctx context.Context) (*Document, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPDFNotFound, l.path)
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, l.path)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}

	pages, err := l.readPages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF %s: %w", l.path, err)
	}

	chunks, err := l.splitter.Split(ctx, pages)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("loaded document", "pages", len(pages), "chunks", len(chunks))
	return &Document{
		Source:      l.path,
		Fingerprint: core.Fingerprint(data),
		Pages:       len(pages),
		Chunks:      chunks,
	}, nil
}

func (l *PDFLoader) readPages(ctx context.Context, data []byte) ([]Page, error) {
	var opts []documentloaders.PDFOptions
	if l.password != "" {
		opts = append(opts, documentloaders.WithPassword(l.password))
	}

	docs, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)), opts...).Load(ctx)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, len(docs))
	for i, doc := range docs {
		pages[i] = Page{
			Content:  doc.PageContent,
			Metadata: mergeMetadata(doc.Metadata, map[string]any{MetaSource: l.path}),
		}
	}
	return pages, nil
}
