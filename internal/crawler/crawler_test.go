package crawler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal/fetcher"
	"github.com/vestnik/vesti-scraper/internal/model"
)

func listingPage(hrefs ...string) string {
	page := `<html><body><h2 class="post-title entry-title">`
	for _, href := range hrefs {
		page += fmt.Sprintf(`<a href=%q>link</a>`, href)
	}
	page += `</h2></body></html>`
	return page
}

func newTestCrawler(seedURLs []string, totalArticles int) *SeedCrawler {
	cfg := &config.ScraperConfig{
		SeedURLs:      seedURLs,
		TotalArticles: totalArticles,
		Headers:       map[string]string{},
		Encoding:      "utf-8",
		Timeout:       5,
	}
	return NewSeedCrawler(cfg, fetcher.NewHTTPFetcher(cfg, nil))
}

func TestFindArticlesDeduplicatesLinks(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	a, b, c := ts.URL+"/news/a", ts.URL+"/news/b", ts.URL+"/news/c"
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage(a, b, a, c)))
	})

	urls, err := newTestCrawler([]string{ts.URL + "/"}, 3).FindArticles()

	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, urls)
}

func TestFindArticlesCapsAtTargetCount(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	a, b, c := ts.URL+"/news/a", ts.URL+"/news/b", ts.URL+"/news/c"
	secondSeedHits := 0
	mux.HandleFunc("/seed1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage(a, b, c)))
	})
	mux.HandleFunc("/seed2", func(w http.ResponseWriter, r *http.Request) {
		secondSeedHits++
		w.Write([]byte(listingPage(ts.URL + "/news/d")))
	})

	urls, err := newTestCrawler([]string{ts.URL + "/seed1", ts.URL + "/seed2"}, 2).FindArticles()

	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, urls)
	assert.Zero(t, secondSeedHits, "crawl must stop before fetching further seeds")
}

func TestFindArticlesContinuesAcrossSeeds(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	a, b, c := ts.URL+"/news/a", ts.URL+"/news/b", ts.URL+"/news/c"
	mux.HandleFunc("/seed1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage(a)))
	})
	mux.HandleFunc("/seed2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage(a, b, c)))
	})

	urls, err := newTestCrawler([]string{ts.URL + "/seed1", ts.URL + "/seed2"}, 3).FindArticles()

	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, urls)
}

func TestFindArticlesSkipsSeedWithZeroLinks(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	a := ts.URL + "/news/a"
	mux.HandleFunc("/seed1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage())) // container present, no anchors
	})
	mux.HandleFunc("/seed2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage(a)))
	})

	urls, err := newTestCrawler([]string{ts.URL + "/seed1", ts.URL + "/seed2"}, 3).FindArticles()

	require.NoError(t, err)
	assert.Equal(t, []string{a}, urls)
}

func TestFindArticlesFailsOnMissingListingContainer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h2 class="widget-title">no posts here</h2></body></html>`))
	}))
	defer ts.Close()

	urls, err := newTestCrawler([]string{ts.URL + "/"}, 3).FindArticles()

	assert.Nil(t, urls)
	assert.ErrorIs(t, err, model.ErrMalformedPage)
}

func TestFindArticlesResolvesRelativeLinks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage("/news/5", "news/6"))) // site-relative hrefs
	}))
	defer ts.Close()

	urls, err := newTestCrawler([]string{ts.URL + "/"}, 3).FindArticles()

	require.NoError(t, err)
	assert.Equal(t, []string{ts.URL + "/news/5", ts.URL + "/news/6"}, urls)
}

func TestFindArticlesReadsOnlyFirstListingContainer(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	a := ts.URL + "/news/a"
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		page := fmt.Sprintf(`<html><body>
			<h2 class="post-title entry-title"><a href=%q>first</a></h2>
			<h2 class="post-title entry-title"><a href=%q>other</a></h2>
		</body></html>`, a, ts.URL+"/news/z")
		w.Write([]byte(page))
	})

	urls, err := newTestCrawler([]string{ts.URL + "/"}, 5).FindArticles()

	require.NoError(t, err)
	assert.Equal(t, []string{a}, urls)
}
