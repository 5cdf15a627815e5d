// Package ingest loads a document into a vector store.
//
// The Ingester sends chunks in fixed-size batches. Each batch is embedded
// and upserted as one unit, retried with bounded exponential backoff and
// jitter when the provider throttles or the store reports a transient
// failure. Any other error aborts the run. Chunk IDs are deterministic, so
// re-running an interrupted ingestion overwrites what was already sent.
//
// After a full run the ingester prunes chunks left by a previous, longer
// document and records a manifest describing what was ingested.
package ingest
