package model

import (
	"errors"
	"net/http"
)

// AuthorNotFound is stored when an article page has no bio-name element.
const AuthorNotFound = "NOT FOUND"

// ErrMalformedPage is returned when a page is missing a structural
// element the site is expected to always render (the post-title listing
// on seed pages, the title element on article pages).
var ErrMalformedPage = errors.New("expected structural element is missing")

type FetchMechanism int

const (
	Curl FetchMechanism = iota
	HeadlessBrowser
)

func (fm FetchMechanism) String() string {
	return [...]string{"curl", "headless browser"}[fm]
}

// Article is one scraped article. The ID is assigned by the pipeline,
// 1-based, in frontier order.
type Article struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Text   string `json:"text,omitempty"`
}

// Response is the raw result of a single GET request.
type Response struct {
	StatusCode  int
	Status      string
	Headers     http.Header
	Body        string
	TimeToFetch int64 // in milliseconds
}

type NotifierTask struct {
	ArticleID int    `json:"article_id"`
	URL       string `json:"url"`
	RawPath   string `json:"raw_path"`
}
