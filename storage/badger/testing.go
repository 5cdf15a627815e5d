package badger

import "github.com/poiesic/docrag/storage"

// NewMemoryStore creates a store for collection backed by an in-memory
// Badger instance. Closing the store releases the instance.
func NewMemoryStore(collection string) (storage.Store, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	store, err := newStore(backend, collection, true)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return store, nil
}
