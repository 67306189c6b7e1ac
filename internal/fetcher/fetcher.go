package fetcher

import (
	"context"
	"crypto/tls"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly"
	"github.com/patrickmn/go-cache"
	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal"
	"github.com/vestnik/vesti-scraper/internal/model"
)

// PageFetcher issues a single rate-limited GET per call and returns the
// raw response. Status codes are not inspected and there are no retries;
// transport failures are the caller's problem.
type PageFetcher interface {
	Fetch(url string) (*model.Response, error)
}

type HTTPFetcher struct {
	cfg       *config.ScraperConfig
	transport *http.Transport
	pageCache *cache.Cache // nil when the response cache is disabled
}

func NewHTTPFetcher(cfg *config.ScraperConfig, cacheCfg *config.CacheConfig) *HTTPFetcher {
	f := &HTTPFetcher{
		cfg: cfg,
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.ShouldVerifyCertificate,
			},
		},
	}
	if cacheCfg != nil && cacheCfg.Enabled {
		f.pageCache = cache.New(cacheCfg.TtlForPage, cacheCfg.TtlForPage)
	}

	return f
}

func (f *HTTPFetcher) Fetch(url string) (*model.Response, error) {
	if f.pageCache != nil {
		if cached, ok := f.pageCache.Get(internal.HashURL(url)); ok {
			slog.Debug("page served from cache.", slog.String("url", url))
			return cached.(*model.Response), nil
		}
	}
	f.politenessDelay()

	var resp *model.Response
	var err error
	if f.cfg.HeadlessMode {
		resp, err = f.fetchWithBrowser(url)
	} else {
		resp, err = f.fetchWithCurl(url)
	}
	if err != nil {
		return nil, err
	}
	if f.pageCache != nil {
		f.pageCache.Set(internal.HashURL(url), resp, cache.DefaultExpiration)
	}

	return resp, nil
}

// politenessDelay sleeps a uniformly random integer number of seconds
// in [DelayMinSec, DelayMaxSec] before every request.
func (f *HTTPFetcher) politenessDelay() {
	minSec, maxSec := f.cfg.DelayMinSec, f.cfg.DelayMaxSec
	if maxSec < minSec {
		maxSec = minSec
	}
	if maxSec <= 0 {
		return
	}
	time.Sleep(time.Duration(minSec+rand.IntN(maxSec-minSec+1)) * time.Second)
}

func (f *HTTPFetcher) fetchWithCurl(url string) (*model.Response, error) {
	resp := &model.Response{}

	c := colly.NewCollector()
	c.WithTransport(f.transport)
	c.SetRequestTimeout(time.Duration(f.cfg.Timeout) * time.Second)

	c.OnRequest(func(r *colly.Request) {
		for key, value := range f.cfg.Headers {
			r.Headers.Set(key, value)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		resp.StatusCode = r.StatusCode
		resp.Status = http.StatusText(r.StatusCode)
		if r.Headers != nil {
			resp.Headers = *r.Headers
		}
		resp.Body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		resp.StatusCode = r.StatusCode
		resp.Status = err.Error()
		resp.Body = string(r.Body)
	})

	t := time.Now()
	err := c.Visit(url)
	resp.TimeToFetch = time.Since(t).Milliseconds()
	if err != nil && resp.StatusCode <= 0 {
		// No HTTP response at all: timeout, connection or TLS failure.
		return nil, err
	}

	return resp, nil
}

func (f *HTTPFetcher) fetchWithBrowser(url string) (*model.Response, error) {
	startTime := time.Now()
	resp := &model.Response{Headers: http.Header{}}
	extraHeaders := make(map[string]any, len(f.cfg.Headers))
	for key, value := range f.cfg.Headers {
		extraHeaders[key] = value
	}

	tCtx, cancelTCtx := context.WithTimeout(context.Background(),
		time.Duration(f.cfg.Timeout)*time.Second)
	defer cancelTCtx()
	ctx, cancel := chromedp.NewContext(tCtx)
	defer cancel()

	chromedp.ListenTarget(ctx, func(event interface{}) {
		switch ev := event.(type) {
		case *network.EventResponseReceived:
			response := ev.Response
			if response.URL == url || response.URL == url+"/" {
				resp.StatusCode = int(response.Status)
				resp.Status = response.StatusText
				for name, value := range response.Headers {
					if s, ok := value.(string); ok {
						resp.Headers.Set(name, s)
					}
				}
			}
		case *network.EventRequestWillBeSent:
			if ev.RedirectResponse != nil {
				slog.Info("redirected.", slog.String("url", ev.RedirectResponse.URL))
			}
		}
	})
	err := chromedp.Run(ctx,
		chromedp.Tasks{
			network.Enable(),
			network.SetExtraHTTPHeaders(extraHeaders),
			enableLifeCycleEvents(),
			navigateAndWaitFor(url, "networkIdle"),
		},
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			resp.Body, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	resp.TimeToFetch = time.Since(startTime).Milliseconds()

	return resp, nil
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, eventName)
	}
}

func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
