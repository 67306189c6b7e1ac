package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal/aws_s3"
	"github.com/vestnik/vesti-scraper/internal/broker"
	"github.com/vestnik/vesti-scraper/internal/crawler"
	"github.com/vestnik/vesti-scraper/internal/fetcher"
	"github.com/vestnik/vesti-scraper/internal/model"
	"github.com/vestnik/vesti-scraper/internal/parser"
	"github.com/vestnik/vesti-scraper/internal/persistence"
	"github.com/vestnik/vesti-scraper/internal/storage"
	"github.com/vestnik/vesti-scraper/internal/telemetry"
	"github.com/vestnik/vesti-scraper/internal/worker"

	_ "github.com/lib/pq"
)

var (
	cfg *config.Config
	db  *sql.DB
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	setupLogger()
	scraperCfg, err := config.NewScraperConfig(cfg.ScraperSettings)
	if err != nil {
		slog.Error("invalid scraper configuration.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metrics := telemetry.SetupMetrics(context.Background(), cfg)
	defer metrics.Close()

	pageFetcher := fetcher.NewHTTPFetcher(scraperCfg, cfg.CacheSettings)
	pipeline := &worker.Pipeline{
		Cfg:     cfg,
		Crawler: crawler.NewSeedCrawler(scraperCfg, pageFetcher),
		Parser:  parser.NewArticleParser(scraperCfg, pageFetcher),
		Store:   storage.NewAssetStore(cfg.OutputPath),
		Metrics: metrics.AppMetrics,
	}

	if cfg.DbSettings != nil && cfg.DbSettings.Enabled {
		db = setupDatabase()
		defer closeDatabase()
		pipeline.Db = persistence.NewMetadataRepository(db, cfg.Version)
	}
	if cfg.S3Settings != nil && cfg.S3Settings.Enabled {
		pipeline.S3 = aws_s3.NewS3BucketClient(cfg)
	}

	kafkaWg := &sync.WaitGroup{}
	var notifierChan chan *model.NotifierTask
	if cfg.KafkaSettings != nil && cfg.KafkaSettings.Producer != nil && cfg.KafkaSettings.Producer.Enabled {
		notifierChan = make(chan *model.NotifierTask, scraperCfg.TotalArticles)
		kafkaWg.Add(1)
		notifier := broker.NewKafkaNotifier(notifierChan, metrics.KafkaProducerMetrics,
			cfg.KafkaSettings.Producer, kafkaWg)
		go notifier.Run()
		pipeline.NotifierChan = notifierChan
	}

	slog.Info("starting scrape run.", slog.String("env", cfg.Env),
		slog.Int("target articles", scraperCfg.TotalArticles),
		slog.Bool("headless mode", scraperCfg.HeadlessMode))

	runErr := pipeline.Run(ctx)
	if notifierChan != nil {
		close(notifierChan)
		kafkaWg.Wait()
	}
	if runErr != nil {
		slog.Error("scrape run failed.", slog.String("err", runErr.Error()))
		os.Exit(1)
	}
	slog.Info("scrape run finished.")
}

func setupLogger() *slog.Logger {
	envLogLevel := strings.ToLower(cfg.LogLevel)
	var slogLevel slog.Level
	err := slogLevel.UnmarshalText([]byte(envLogLevel))
	if err != nil {
		log.Printf("encountenred log level: '%s'. The package does not support custom log levels", envLogLevel)
		slogLevel = slog.LevelDebug
	}
	log.Printf("slog level overwritten to '%v'", slogLevel)
	slog.SetLogLoggerLevel(slogLevel)

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs,
			NoColor: func() bool {
				if cfg.Env == "local" {
					return false
				}
				return true
			}()}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	slog.Info("connecting to the database...")
	connStr := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cfg.DbSettings.User,
		cfg.DbSettings.Password,
		cfg.DbSettings.Host,
		cfg.DbSettings.Port,
		cfg.DbSettings.Name,
	)
	database, err := sql.Open("postgres", connStr)
	if err != nil {
		slog.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		slog.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			slog.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				slog.Error("failed to establish database connection.")
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	slog.Info("connected to the database!")

	return database
}

func closeDatabase() {
	slog.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		slog.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}
