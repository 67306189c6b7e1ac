package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/vestnik/vesti-scraper/internal/model"
)

// ArticleSink persists a completed article record. Raw text and
// metadata are stored separately, in that order.
type ArticleSink interface {
	StoreRawText(*model.Article) error
	StoreMetadata(*model.Article) error
}

// AssetStore writes article assets to a local directory as
// <id>_raw.txt and <id>_meta.json files.
type AssetStore struct {
	basePath string
}

func NewAssetStore(basePath string) *AssetStore {
	return &AssetStore{basePath: basePath}
}

// PrepareEnvironment removes any pre-existing output directory and
// creates a fresh one, parents included. Safe to call repeatedly.
func (s *AssetStore) PrepareEnvironment() error {
	if err := os.RemoveAll(s.basePath); err != nil {
		return fmt.Errorf("remove output path %s: %w", s.basePath, err)
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("create output path %s: %w", s.basePath, err)
	}
	slog.Debug("output path prepared.", slog.String("path", s.basePath))

	return nil
}

func (s *AssetStore) StoreRawText(article *model.Article) error {
	path := s.RawTextPath(article.ID)
	if err := os.WriteFile(path, []byte(article.Text), 0o644); err != nil {
		return fmt.Errorf("write raw text for article %d: %w", article.ID, err)
	}
	slog.Debug("raw text stored.", slog.String("path", path))

	return nil
}

func (s *AssetStore) StoreMetadata(article *model.Article) error {
	meta := struct {
		ID     int    `json:"id"`
		URL    string `json:"url"`
		Title  string `json:"title"`
		Author string `json:"author"`
	}{
		ID:     article.ID,
		URL:    article.URL,
		Title:  article.Title,
		Author: article.Author,
	}
	body, err := jsoniter.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata for article %d: %w", article.ID, err)
	}
	path := filepath.Join(s.basePath, fmt.Sprintf("%d_meta.json", article.ID))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write metadata for article %d: %w", article.ID, err)
	}
	slog.Debug("metadata stored.", slog.String("path", path))

	return nil
}

func (s *AssetStore) RawTextPath(articleID int) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%d_raw.txt", articleID))
}
