package pgvector

// Table layout shared with LangChain's PGVector store, so collections written
// by either tool can be read by the other. Chunk IDs are the primary key of
// the embedding table.
const (
	collectionTable = "langchain_pg_collection"
	embeddingTable  = "langchain_pg_embedding"

	// manifestKey is the collection cmetadata field holding the ingestion manifest.
	manifestKey = "docrag_manifest"
)

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS ` + collectionTable + ` (
		uuid UUID PRIMARY KEY,
		name VARCHAR NOT NULL UNIQUE,
		cmetadata JSON
	)`,
	`CREATE TABLE IF NOT EXISTS ` + embeddingTable + ` (
		id VARCHAR PRIMARY KEY,
		collection_id UUID REFERENCES ` + collectionTable + `(uuid) ON DELETE CASCADE,
		embedding VECTOR,
		document VARCHAR,
		cmetadata JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS ix_cmetadata_gin ON ` + embeddingTable + ` USING gin (cmetadata jsonb_path_ops)`,
}

const (
	selectCollectionSQL = `SELECT uuid::text FROM ` + collectionTable + ` WHERE name = $1`

	insertCollectionSQL = `INSERT INTO ` + collectionTable + ` (uuid, name, cmetadata)
		VALUES ($1::uuid, $2, '{}'::json)
		ON CONFLICT (name) DO NOTHING`

	upsertEmbeddingSQL = `INSERT INTO ` + embeddingTable + ` (id, collection_id, embedding, document, cmetadata)
		VALUES ($1, $2::uuid, $3, $4, $5::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			collection_id = EXCLUDED.collection_id,
			embedding = EXCLUDED.embedding,
			document = EXCLUDED.document,
			cmetadata = EXCLUDED.cmetadata`

	// Cosine distance; 0 means identical direction.
	similaritySearchSQL = `SELECT e.id, COALESCE(e.document, ''), COALESCE(e.cmetadata, '{}'::jsonb), e.embedding <=> $1 AS distance
		FROM ` + embeddingTable + ` e
		JOIN ` + collectionTable + ` c ON e.collection_id = c.uuid
		WHERE c.name = $2
		ORDER BY distance ASC
		LIMIT $3`

	deleteExceptSQL = `DELETE FROM ` + embeddingTable + `
		WHERE collection_id = (SELECT uuid FROM ` + collectionTable + ` WHERE name = $1)
		AND NOT (id = ANY($2))`

	countSQL = `SELECT count(*) FROM ` + embeddingTable + ` e
		JOIN ` + collectionTable + ` c ON e.collection_id = c.uuid
		WHERE c.name = $1`

	saveManifestSQL = `UPDATE ` + collectionTable + `
		SET cmetadata = (COALESCE(cmetadata::jsonb, '{}'::jsonb) || jsonb_build_object('` + manifestKey + `', $2::jsonb))::json
		WHERE name = $1`

	loadManifestSQL = `SELECT cmetadata -> '` + manifestKey + `' FROM ` + collectionTable + ` WHERE name = $1`
)
