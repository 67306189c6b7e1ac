package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal/aws_s3"
	"github.com/vestnik/vesti-scraper/internal/crawler"
	"github.com/vestnik/vesti-scraper/internal/model"
	"github.com/vestnik/vesti-scraper/internal/parser"
	"github.com/vestnik/vesti-scraper/internal/persistence"
	"github.com/vestnik/vesti-scraper/internal/storage"
	"github.com/vestnik/vesti-scraper/internal/telemetry"
)

// Pipeline sequences one full scrape run: seed crawl, output area
// preparation, per-article parse and fan-out to the sinks. Any error
// aborts the run; there is no partial-run recovery.
type Pipeline struct {
	Cfg          *config.Config
	Crawler      *crawler.SeedCrawler
	Parser       *parser.ArticleParser
	Store        *storage.AssetStore
	S3           aws_s3.BucketClient         // nil when disabled
	Db           persistence.MetadataStorage // nil when disabled
	NotifierChan chan<- *model.NotifierTask  // nil when disabled
	Metrics      *telemetry.AppMetrics
}

type parseJob struct {
	id  int
	url string
}

func (p *Pipeline) Run(ctx context.Context) error {
	urls, err := p.Crawler.FindArticles()
	if err != nil {
		return fmt.Errorf("seed crawl: %w", err)
	}
	p.Metrics.ArticlesFoundCnt(int64(len(urls)))
	slog.Info("frontier collected.", slog.Int("articles", len(urls)))

	if err := p.Store.PrepareEnvironment(); err != nil {
		return err
	}

	workersNum := 1
	if p.Cfg.WorkerSettings != nil && p.Cfg.WorkerSettings.WorkersNum > 1 {
		workersNum = p.Cfg.WorkerSettings.WorkersNum
	}
	if workersNum == 1 {
		return p.runSequential(ctx, urls)
	}
	return p.runPooled(ctx, urls, workersNum)
}

func (p *Pipeline) runSequential(ctx context.Context, urls []string) error {
	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processArticle(url, i+1); err != nil {
			return err
		}
	}
	return nil
}

// runPooled parses articles concurrently. Identifiers are fixed from
// frontier order before dispatch, so the assignment stays deterministic
// regardless of fetch completion order. The first failure cancels the
// remaining work.
func (p *Pipeline) runPooled(ctx context.Context, urls []string, workersNum int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan parseJob)
	wg := &sync.WaitGroup{}
	var once sync.Once
	var runErr error
	fail := func(err error) {
		once.Do(func() {
			runErr = err
			cancel()
		})
	}

	for w := 0; w < workersNum; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := p.processArticle(job.url, job.id); err != nil {
					fail(err)
				}
			}
		}()
	}

dispatch:
	for i, url := range urls {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- parseJob{id: i + 1, url: url}:
		}
	}
	close(jobs)
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func (p *Pipeline) processArticle(url string, id int) error {
	article, err := p.Parser.Parse(url, id)
	if err != nil {
		p.Metrics.FailedArticleCnt(1)
		return err
	}
	if err := p.storeArticle(article); err != nil {
		p.Metrics.FailedArticleCnt(1)
		return err
	}
	p.Metrics.ArticlesParsedCnt(1)
	slog.Info("article stored.", slog.Int("id", article.ID), slog.String("url", article.URL),
		slog.String("title", article.Title))

	return nil
}

func (p *Pipeline) storeArticle(article *model.Article) error {
	if err := p.Store.StoreRawText(article); err != nil {
		return err
	}
	if err := p.Store.StoreMetadata(article); err != nil {
		return err
	}
	if p.S3 != nil {
		if _, err := p.S3.WriteArticle(article); err != nil {
			return fmt.Errorf("write article %d to s3: %w", article.ID, err)
		}
	}
	if p.Db != nil {
		p.Db.Save(article)
	}
	if p.NotifierChan != nil {
		p.NotifierChan <- &model.NotifierTask{
			ArticleID: article.ID,
			URL:       article.URL,
			RawPath:   p.Store.RawTextPath(article.ID),
		}
	}

	return nil
}
