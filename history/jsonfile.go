package history

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/use-agent/pricewatch/models"
)

// JSONFile keeps the latest snapshot in a single JSON document.
type JSONFile struct {
	path string
}

// NewJSONFile creates a store at path.
func NewJSONFile(path string) *JSONFile {
	if path == "" {
		path = "results.json"
	}
	return &JSONFile{path: path}
}

// Load reads the file. A missing file is a first run, not an error.
func (f *JSONFile) Load(_ context.Context) (*models.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeHistory, "read "+f.path, err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeHistory, "decode "+f.path, err)
	}
	return &snap, nil
}

// Save writes to a temporary file next to the target and renames it over
// the previous snapshot, so readers never observe a partial document.
func (f *JSONFile) Save(_ context.Context, snap models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeHistory, "encode snapshot", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeHistory, "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return models.NewScrapeError(models.ErrCodeHistory, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return models.NewScrapeError(models.ErrCodeHistory, "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return models.NewScrapeError(models.ErrCodeHistory, "close temp file", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return models.NewScrapeError(models.ErrCodeHistory, "replace "+f.path, err)
	}
	return nil
}

func (f *JSONFile) Close() error { return nil }
