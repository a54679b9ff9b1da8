package application

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/jobrunner/catena/internal/ports/output"
)

// fakeSource implements output.DefinitionSource over an in-memory map.
type fakeSource struct {
	files   map[string]string
	listErr error
}

func (f *fakeSource) List(_ context.Context) ([]output.DefinitionObject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	keys := make([]string, 0, len(f.files))
	for key := range f.files {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	objects := make([]output.DefinitionObject, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, output.DefinitionObject{
			Key:  key,
			Size: int64(len(f.files[key])),
		})
	}
	return objects, nil
}

func (f *fakeSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such definition file")
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (f *fakeSource) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.files[key]
	return ok, nil
}
