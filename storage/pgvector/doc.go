// Package pgvector stores chunks in PostgreSQL using the pgvector extension.
//
// The tables follow the layout of LangChain's PGVector integration:
// langchain_pg_collection holds one row per named collection and
// langchain_pg_embedding holds one row per chunk, keyed by chunk ID.
// Similarity is cosine distance computed by the database. The ingestion
// manifest lives in the collection's cmetadata under "docrag_manifest".
//
// Open creates the extension, the tables and the collection row on first use.
package pgvector
