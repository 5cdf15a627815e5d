package badger

const (
	chunkRecordPrefix = "chunk"
	manifestPrefix    = "manifest"
	keySeparator      = ":"
)

// makeChunkPrefix returns the key prefix shared by every chunk of a collection.
// The trailing separator keeps "docs" from matching "docs2".
func makeChunkPrefix(collection string) []byte {
	return []byte(chunkRecordPrefix + keySeparator + collection + keySeparator)
}

func makeChunkKey(collection, id string) []byte {
	prefix := makeChunkPrefix(collection)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}

// chunkIDFromKey strips the collection prefix from a chunk key.
func chunkIDFromKey(collection string, key []byte) string {
	return string(key[len(makeChunkPrefix(collection)):])
}

func makeManifestKey(collection string) []byte {
	return []byte(manifestPrefix + keySeparator + collection)
}
