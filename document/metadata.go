package document

import "maps"

// Metadata keys attached to every chunk.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// SanitizeMetadata returns a copy of metadata without nil values and empty
// strings. The result is never nil.
func SanitizeMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// mergeMetadata layers extra over base without modifying either.
func mergeMetadata(base, extra map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(extra))
	}
	maps.Copy(out, extra)
	return out
}
