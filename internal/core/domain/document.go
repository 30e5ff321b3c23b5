package domain

// Reserved metadata keys set by the ingestion job. Connector-supplied
// extra metadata must never overwrite these.
const (
	MetaSource       = "source"
	MetaKey          = "key"
	MetaChecksum     = "checksum"
	MetaVersion      = "version"
	MetaFormat       = "format"
	MetaSourceName   = "source_name"
	MetaFileName     = "file_name"
	MetaLastModified = "last_modified"
)

// ReservedMetadataKeys is the set of keys owned by the pipeline.
var ReservedMetadataKeys = map[string]struct{}{
	MetaSource:       {},
	MetaKey:          {},
	MetaChecksum:     {},
	MetaVersion:      {},
	MetaFormat:       {},
	MetaSourceName:   {},
	MetaFileName:     {},
	MetaLastModified: {},
}

// Document is the ephemeral unit handed to the content sink:
// raw text plus a metadata map carrying the reserved keys.
type Document struct {
	// Text is the full raw text content.
	Text string

	// Metadata carries the reserved keys plus any connector-supplied
	// fields that do not collide with them.
	Metadata map[string]any
}

// MergeExtraMetadata copies entries from extra into metadata,
// silently discarding any key in the reserved set. Reserved keys
// always win; collisions never fail.
func MergeExtraMetadata(metadata, extra map[string]any) {
	for k, v := range extra {
		if _, reserved := ReservedMetadataKeys[k]; reserved {
			continue
		}
		metadata[k] = v
	}
}
