package crawler

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal/fetcher"
	"github.com/vestnik/vesti-scraper/internal/model"
)

// listingSelector marks the post-title listing on seed pages. Only the
// first matching container is read; that is where the site renders its
// article links.
const listingSelector = "h2.post-title.entry-title"

type SeedCrawler struct {
	cfg     *config.ScraperConfig
	fetcher fetcher.PageFetcher
}

func NewSeedCrawler(cfg *config.ScraperConfig, f fetcher.PageFetcher) *SeedCrawler {
	return &SeedCrawler{
		cfg:     cfg,
		fetcher: f,
	}
}

// FindArticles walks the seed pages in configuration order and returns
// the deduplicated article URL frontier, capped at TotalArticles. The
// crawl stops the moment the cap is reached, skipping remaining links
// and remaining seeds.
func (c *SeedCrawler) FindArticles() ([]string, error) {
	frontier := make([]string, 0, c.cfg.TotalArticles)
	seen := make(map[string]struct{}, c.cfg.TotalArticles)

	for _, seedURL := range c.cfg.SeedURLs {
		links, err := c.collectLinks(seedURL)
		if err != nil {
			return nil, err
		}
		if len(links) == 0 {
			slog.Debug("seed page yielded no links.", slog.String("seed", seedURL))
			continue
		}
		for _, link := range links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			frontier = append(frontier, link)
			if len(frontier) >= c.cfg.TotalArticles {
				return frontier, nil
			}
		}
	}

	return frontier, nil
}

func (c *SeedCrawler) collectLinks(seedURL string) ([]string, error) {
	slog.Info("crawling seed page.", slog.String("url", seedURL))
	resp, err := c.fetcher.Fetch(seedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch seed page %s: %w", seedURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse seed page %s: %w", seedURL, err)
	}

	listing := doc.Find(listingSelector)
	if listing.Length() == 0 {
		return nil, fmt.Errorf("seed page %s has no post-title listing: %w",
			seedURL, model.ErrMalformedPage)
	}

	base, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url %s: %w", seedURL, err)
	}
	var links []string
	listing.First().Find("a").Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		links = append(links, resolveLink(base, href))
	})

	return links, nil
}

// resolveLink makes site-relative hrefs absolute against the seed page.
// Unparseable hrefs are kept as extracted.
func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
