// Package source provides catalog definition source adapters.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/catena/internal/ports/output"
)

// isDefinitionFile reports whether the name looks like a catalog
// definition file.
func isDefinitionFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// LocalSource implements DefinitionSource for a local directory.
type LocalSource struct {
	basePath string
}

// NewLocalSource creates a new local definition source.
func NewLocalSource(basePath string) *LocalSource {
	return &LocalSource{basePath: basePath}
}

// List returns all definition files in the local directory.
func (s *LocalSource) List(_ context.Context) ([]output.DefinitionObject, error) {
	var objects []output.DefinitionObject

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if !isDefinitionFile(info.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, output.DefinitionObject{
			Key:          relPath,
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	return objects, nil
}

// Open returns a reader for the given definition file.
func (s *LocalSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.basePath, key))
}

// Exists checks if a definition file exists.
func (s *LocalSource) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// FullPath returns the full path for a key.
func (s *LocalSource) FullPath(key string) string {
	return filepath.Join(s.basePath, key)
}
