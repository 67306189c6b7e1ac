package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vestnik/vesti-scraper/config"
)

func testScraperConfig() *config.ScraperConfig {
	return &config.ScraperConfig{
		TotalArticles: 10,
		Headers:       map[string]string{"User-Agent": "test-agent"},
		Encoding:      "utf-8",
		Timeout:       5,
		// no politeness delay in tests
		DelayMinSec: 0,
		DelayMaxSec: 0,
	}
}

func TestFetchReturnsRawResponse(t *testing.T) {
	var gotUserAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(testScraperConfig(), nil)
	resp, err := f.Fetch(ts.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "hello")
	assert.Equal(t, "test-agent", gotUserAgent)
}

func TestFetchDoesNotInspectStatusCodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := NewHTTPFetcher(testScraperConfig(), nil)
	resp, err := f.Fetch(ts.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchPropagatesTransportErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from here on

	f := NewHTTPFetcher(testScraperConfig(), nil)
	resp, err := f.Fetch(ts.URL)

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestFetchServesFromCacheWhenEnabled(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("cached page"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(testScraperConfig(), &config.CacheConfig{Enabled: true, TtlForPage: time.Minute})

	first, err := f.Fetch(ts.URL)
	require.NoError(t, err)
	second, err := f.Fetch(ts.URL)
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	assert.Equal(t, first.Body, second.Body)
}

func TestFetchIssuesOneRequestPerCallWithoutCache(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("page"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(testScraperConfig(), nil)

	_, err := f.Fetch(ts.URL)
	require.NoError(t, err)
	_, err = f.Fetch(ts.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, hits)
}
