package storage

import (
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vestnik/vesti-scraper/internal/model"
)

func TestPrepareEnvironmentIsIdempotent(t *testing.T) {
	base := filepath.Join(t.TempDir(), "assets", "articles")
	store := NewAssetStore(base)

	require.NoError(t, store.PrepareEnvironment())
	// leave a leftover from a previous run
	require.NoError(t, os.WriteFile(filepath.Join(base, "1_raw.txt"), []byte("stale"), 0o644))

	require.NoError(t, store.PrepareEnvironment())

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "output path must be freshly created and empty")
}

func TestStoreRawText(t *testing.T) {
	base := t.TempDir()
	store := NewAssetStore(base)

	article := &model.Article{ID: 3, Text: "Hello world."}
	require.NoError(t, store.StoreRawText(article))

	body, err := os.ReadFile(filepath.Join(base, "3_raw.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", string(body))
}

func TestStoreMetadata(t *testing.T) {
	base := t.TempDir()
	store := NewAssetStore(base)

	article := &model.Article{
		ID:     5,
		URL:    "http://vzm-vesti.ru/news/5",
		Title:  "Headline",
		Author: model.AuthorNotFound,
		Text:   "ignored in metadata",
	}
	require.NoError(t, store.StoreMetadata(article))

	body, err := os.ReadFile(filepath.Join(base, "5_meta.json"))
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, jsoniter.Unmarshal(body, &meta))
	assert.Equal(t, float64(5), meta["id"])
	assert.Equal(t, "http://vzm-vesti.ru/news/5", meta["url"])
	assert.Equal(t, "Headline", meta["title"])
	assert.Equal(t, "NOT FOUND", meta["author"])
	assert.NotContains(t, meta, "text")
}

func TestRawTextPath(t *testing.T) {
	store := NewAssetStore("/data/articles")

	assert.Equal(t, filepath.Join("/data/articles", "7_raw.txt"), store.RawTextPath(7))
}
