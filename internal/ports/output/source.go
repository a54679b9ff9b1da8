package output

import (
	"context"
	"io"
)

// DefinitionSource defines the secondary port for catalog definition
// storage. A definition file names OGC endpoints and static groups; the
// application composes the catalog from every file the source lists.
type DefinitionSource interface {
	// List returns all catalog definition files in the source.
	List(ctx context.Context) ([]DefinitionObject, error)

	// Open returns a reader for the given definition file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a definition file exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// DefinitionObject represents a catalog definition file in a source.
type DefinitionObject struct {
	Key          string // Object key/path
	Size         int64  // Size in bytes
	LastModified int64  // Unix timestamp
	ETag         string // Content hash
}

// SourceType represents the type of definition source backend.
type SourceType string

// Definition source backends.
const (
	SourceTypeS3    SourceType = "s3"
	SourceTypeAzure SourceType = "azure"
	SourceTypeHTTP  SourceType = "http"
	SourceTypeLocal SourceType = "local"
)
