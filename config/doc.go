// Package config builds the docrag process configuration from environment
// variables and an optional .env file.
//
// Required variables:
//
//	GOOGLE_API_KEY       API key for Gemini (googleai provider only)
//	PGVECTOR_URL         PostgreSQL connection URL (pgvector backend only)
//	PGVECTOR_COLLECTION  collection holding the document chunks
//
// Everything else has a default; see the Env constants.
package config
