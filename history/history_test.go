package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

func sampleSnapshot(at time.Time, price int64) models.Snapshot {
	return models.NewSnapshot(at, []models.ExtractionResult{
		{
			Name:      "Winpy",
			URL:       "https://www.winpy.cl/venta/ryzen-5-9600x/",
			Price:     models.Int64(price),
			Available: models.Available,
			Success:   true,
		},
		{Name: "SP Digital", URL: "https://www.spdigital.cl/ryzen-5-9600x/", Failure: models.ErrCodeChallenge},
	})
}

func TestJSONFile_MissingFileIsFirstRun(t *testing.T) {
	store := NewJSONFile(filepath.Join(t.TempDir(), "results.json"))
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestJSONFile_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.json")
	store := NewJSONFile(path)

	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, sampleSnapshot(at, 210000)))
	require.NoError(t, store.Save(ctx, sampleSnapshot(at.Add(time.Hour), 200000)))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Timestamp.Equal(at.Add(time.Hour)))
	assert.Equal(t, 1, got.SuccessCount)
	require.Len(t, got.Results, 2)
	assert.Equal(t, int64(200000), *got.Results[0].Price)
	assert.Nil(t, got.Results[1].Price)
	assert.Equal(t, models.AvailabilityUnknown, got.Results[1].Available)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestJSONFile_PersistedShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, NewJSONFile(path).Save(context.Background(),
		sampleSnapshot(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC), 200000)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timestamp": "2026-10-16T12:00:00Z",
		"results": [
			{"name": "Winpy", "url": "https://www.winpy.cl/venta/ryzen-5-9600x/", "price": 200000, "available": true, "success": true},
			{"name": "SP Digital", "url": "https://www.spdigital.cl/ryzen-5-9600x/", "price": null, "available": null, "success": false, "failure": "CHALLENGE_UNRESOLVED"}
		],
		"success_count": 1
	}`, string(data))
}

func TestJSONFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewJSONFile(path).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeHistory, models.CodeOf(err))
}

func TestSQLite_SaveLoadNewest(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, sampleSnapshot(at, 210000)))
	require.NoError(t, store.Save(ctx, sampleSnapshot(at.Add(500*time.Millisecond), 205000)))
	require.NoError(t, store.Save(ctx, sampleSnapshot(at.Add(time.Second), 200000)))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(200000), *got.Results[0].Price)
	assert.Equal(t, "SP Digital", got.Results[1].Name)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.HistoryConfig{Backend: "json", Path: filepath.Join(dir, "r.json")})
	require.NoError(t, err)
	assert.IsType(t, &JSONFile{}, s)

	s, err = Open(ctx, config.HistoryConfig{Backend: "sqlite", Path: filepath.Join(dir, "h.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.HistoryConfig{Backend: "redis"})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeHistory, models.CodeOf(err))
}
