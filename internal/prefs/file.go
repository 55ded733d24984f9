package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thiagokokada/revgraph/internal/events"
)

// File is a Store persisted as a flat YAML mapping. Every Set rewrites the
// file through a temporary file and rename.
type File struct {
	*Memory
	path string
}

// OpenFile loads path if it exists. A missing file yields an empty store.
func OpenFile(path string, bus *events.Bus) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("preferences path is empty")
	}
	f := &File{Memory: NewMemory(bus), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	if values != nil {
		f.values = values
	}
	slog.Debug("preferences loaded", slog.String("path", path), slog.Int("keys", len(f.values)))
	return f, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Set(key string, value any) error {
	if err := f.Memory.Set(key, value); err != nil {
		return err
	}
	return f.save()
}

func (f *File) save() error {
	data, err := yaml.Marshal(f.snapshot())
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		err = errors.Join(err, tmp.Close(), os.Remove(tmp.Name()))
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", errors.Join(err, os.Remove(tmp.Name())))
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write preferences: %w", errors.Join(err, os.Remove(tmp.Name())))
	}
	return nil
}
