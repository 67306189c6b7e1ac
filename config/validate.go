package config

import (
	"errors"
	"fmt"
	"strings"
)

// SiteURL is the only site this scraper understands; the listing and
// article selectors below are specific to its markup.
const SiteURL = "http://vzm-vesti.ru/"

const (
	MaxArticles   = 150
	MaxTimeoutSec = 60

	defaultDelayMinSec = 1
	defaultDelayMaxSec = 5
)

var (
	ErrInvalidSeedURL         = errors.New("seed urls must be a list of strings pointing at the site")
	ErrInvalidArticleCount    = errors.New("total articles must be a positive integer")
	ErrArticleCountOutOfRange = errors.New("total articles exceeds the allowed maximum")
	ErrInvalidHeaders         = errors.New("headers must be a string-to-string map")
	ErrInvalidEncoding        = errors.New("encoding must be a string")
	ErrInvalidTimeout         = errors.New("timeout must be an integer of seconds in (0, 60]")
	ErrInvalidFlagType        = errors.New("certificate verification and headless mode must be booleans")
)

// ScraperConfig holds the validated crawl parameters. It is built once
// by NewScraperConfig and never mutated afterwards.
type ScraperConfig struct {
	SeedURLs                []string
	TotalArticles           int
	Headers                 map[string]string
	Encoding                string
	Timeout                 int // seconds
	ShouldVerifyCertificate bool
	HeadlessMode            bool

	// Politeness delay bounds in seconds. Not part of the validated
	// input; defaults to [1, 5].
	DelayMinSec int
	DelayMaxSec int
}

// NewScraperConfig validates the raw, already-deserialized scraper
// section and returns an immutable configuration. The first failing
// field determines the returned error kind.
func NewScraperConfig(raw map[string]any) (*ScraperConfig, error) {
	seedURLs, err := validateSeedURLs(raw["seed_urls"])
	if err != nil {
		return nil, err
	}
	totalArticles, ok := asInt(raw["total_articles_to_find_and_parse"])
	if !ok || totalArticles <= 0 {
		return nil, ErrInvalidArticleCount
	}
	if totalArticles > MaxArticles {
		return nil, fmt.Errorf("%w: %d > %d", ErrArticleCountOutOfRange, totalArticles, MaxArticles)
	}
	headers, err := validateHeaders(raw["headers"])
	if err != nil {
		return nil, err
	}
	encoding, ok := raw["encoding"].(string)
	if !ok {
		return nil, ErrInvalidEncoding
	}
	timeout, ok := asInt(raw["timeout"])
	if !ok || timeout <= 0 || timeout > MaxTimeoutSec {
		return nil, ErrInvalidTimeout
	}
	verify, ok := raw["should_verify_certificate"].(bool)
	if !ok {
		return nil, ErrInvalidFlagType
	}
	headless, ok := raw["headless_mode"].(bool)
	if !ok {
		return nil, ErrInvalidFlagType
	}

	return &ScraperConfig{
		SeedURLs:                seedURLs,
		TotalArticles:           totalArticles,
		Headers:                 headers,
		Encoding:                encoding,
		Timeout:                 timeout,
		ShouldVerifyCertificate: verify,
		HeadlessMode:            headless,
		DelayMinSec:             defaultDelayMinSec,
		DelayMaxSec:             defaultDelayMaxSec,
	}, nil
}

func validateSeedURLs(value any) ([]string, error) {
	var elements []any
	switch v := value.(type) {
	case []any:
		elements = v
	case []string:
		for _, s := range v {
			elements = append(elements, s)
		}
	default:
		return nil, ErrInvalidSeedURL
	}

	urls := make([]string, 0, len(elements))
	for _, element := range elements {
		url, ok := element.(string)
		if !ok || !strings.Contains(url, SiteURL) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSeedURL, element)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func validateHeaders(value any) (map[string]string, error) {
	switch v := value.(type) {
	case map[string]string:
		return v, nil
	case map[string]any:
		headers := make(map[string]string, len(v))
		for key, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, ErrInvalidHeaders
			}
			headers[key] = s
		}
		return headers, nil
	default:
		return nil, ErrInvalidHeaders
	}
}

// asInt accepts the integer types viper and json decoders produce.
// Floats and strings are rejected on purpose.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
