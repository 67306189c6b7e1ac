package persistence

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/vestnik/vesti-scraper/internal"
	"github.com/vestnik/vesti-scraper/internal/model"
)

type MetadataStorage interface {
	Save(*model.Article)
}

type MetadataRepository struct {
	db      *sql.DB
	version string
}

func NewMetadataRepository(db *sql.DB, version string) *MetadataRepository {
	return &MetadataRepository{db: db, version: version}
}

func (mr *MetadataRepository) Save(article *model.Article) {
	_, err := mr.db.Exec(`INSERT INTO scraper.article_metadata
    (url_hash, full_url, article_id, title, author, text_length, timestamp, scraper_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (url_hash) DO UPDATE
	SET full_url = EXCLUDED.full_url,
	    article_id = EXCLUDED.article_id,
	    title = EXCLUDED.title,
		author = EXCLUDED.author,
		text_length = EXCLUDED.text_length,
		timestamp = EXCLUDED.timestamp,
		scraper_version = EXCLUDED.scraper_version;`,
		internal.HashURL(article.URL),
		article.URL,
		article.ID,
		article.Title,
		article.Author,
		len(article.Text),
		time.Now().UTC(),
		mr.version)
	if err != nil {
		slog.Error("failed to save article metadata to database.", slog.String("err", err.Error()))
		return
	}
	slog.Debug("article metadata saved to db.")
}
