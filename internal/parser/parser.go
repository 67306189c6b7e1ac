package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal/fetcher"
	"github.com/vestnik/vesti-scraper/internal/model"
)

// ErrDateParsingNotSupported is returned by UnifyDateFormat until
// site-specific date extraction is implemented.
var ErrDateParsingNotSupported = errors.New("date normalization is not implemented")

const (
	authorSelector = "p.bio-name"
	titleSeparator = "—"
)

type ArticleParser struct {
	cfg     *config.ScraperConfig
	fetcher fetcher.PageFetcher
}

func NewArticleParser(cfg *config.ScraperConfig, f fetcher.PageFetcher) *ArticleParser {
	return &ArticleParser{
		cfg:     cfg,
		fetcher: f,
	}
}

// Parse fetches one article page and extracts it into a fully populated
// record. The record is not retained by the parser.
func (p *ArticleParser) Parse(fullURL string, articleID int) (*model.Article, error) {
	resp, err := p.fetcher.Fetch(fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetch article %s: %w", fullURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse article %s: %w", fullURL, err)
	}

	article := &model.Article{
		ID:  articleID,
		URL: fullURL,
	}
	fillText(doc, article)
	if err := fillMeta(doc, article); err != nil {
		return nil, fmt.Errorf("article %s: %w", fullURL, err)
	}

	return article, nil
}

// fillText concatenates every paragraph's text in document order with
// no separator. A page without paragraphs yields an empty text field.
func fillText(doc *goquery.Document, article *model.Article) {
	var text strings.Builder
	doc.Find("p").Each(func(_ int, paragraph *goquery.Selection) {
		text.WriteString(paragraph.Text())
	})
	article.Text = text.String()
}

func fillMeta(doc *goquery.Document, article *model.Article) error {
	title := doc.Find("title")
	if title.Length() == 0 {
		return fmt.Errorf("no title element: %w", model.ErrMalformedPage)
	}
	// The site appends its own name after an em-dash.
	article.Title = strings.TrimSpace(strings.SplitN(title.First().Text(), titleSeparator, 2)[0])

	author := doc.Find(authorSelector)
	if author.Length() == 0 {
		article.Author = model.AuthorNotFound
	} else {
		article.Author = strings.TrimSpace(author.First().Text())
	}

	return nil
}

// UnifyDateFormat converts a free-text article date into a time value.
// The site's date markup is not parsed yet; the seam exists so callers
// do not have to change when it is.
func (p *ArticleParser) UnifyDateFormat(dateStr string) (time.Time, error) {
	return time.Time{}, ErrDateParsingNotSupported
}
