// Package document turns a PDF into chunks ready for embedding.
//
// Text is extracted page by page, then split with a recursive character
// strategy (1000 characters per chunk, 150 shared between neighbours by
// default). Chunks receive deterministic IDs doc-0, doc-1, ... in page order
// and carry their page's provenance: source path, page number and page count.
package document
