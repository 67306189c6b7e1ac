package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/google/uuid"
	"github.com/vestnik/vesti-scraper/config"
)

var meter metric.Meter

type MetricsProvider struct {
	KafkaProducerMetrics *KafkaProducerMetrics
	AppMetrics           *AppMetrics
	Close                func()
}

type KafkaProducerMetrics struct {
	SuccessfullySendMsgCnt func(count int64)
	FailedSendMsgCnt       func(count int64)
}

type AppMetrics struct {
	ArticlesFoundCnt  func(count int64)
	ArticlesParsedCnt func(count int64)
	FailedArticleCnt  func(count int64)
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	metricsProvider := new(MetricsProvider)
	var meterProvider *sdkmetric.MeterProvider

	if cfg.TelemetrySettings.Enabled {
		r, err := newResource(cfg)
		if err != nil {
			slog.Error("failed to get resource.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
		if err != nil {
			slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		meterProvider = newMeterProvider(exporter, *r)
		otel.SetMeterProvider(meterProvider)
	}

	meter = otel.Meter(cfg.ServiceName)
	metricsProvider.Close = func() {
		if meterProvider != nil {
			err := meterProvider.Shutdown(ctx)
			if err != nil {
				slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
			}
		}
	}

	// Set up kafka producer metrics
	kafkaProducerSuccessCounter, err := meter.Int64Counter("vesti-scraper.kafka.send.success",
		metric.WithDescription("The number of notifications that were successfully written to kafka"),
		metric.WithUnit("{messages}"))
	kafkaProducerFailCounter, err := meter.Int64Counter("vesti-scraper.kafka.send.fail",
		metric.WithDescription("The number of notifications that could not be written to kafka"),
		metric.WithUnit("{messages}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for kafka producer.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.KafkaProducerMetrics = &KafkaProducerMetrics{
		SuccessfullySendMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaProducerSuccessCounter.Add(ctx, count)
			}
		},
		FailedSendMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaProducerFailCounter.Add(ctx, count)
			}
		},
	}

	// Set up scraper metrics
	articlesFoundCounter, err := meter.Int64Counter("vesti-scraper.articles.found",
		metric.WithDescription("The number of article urls collected from seed pages"),
		metric.WithUnit("{articles}"))
	articlesParsedCounter, err := meter.Int64Counter("vesti-scraper.articles.parsed",
		metric.WithDescription("The number of articles parsed and handed to the sinks"),
		metric.WithUnit("{articles}"))
	articlesFailedCounter, err := meter.Int64Counter("vesti-scraper.articles.fail",
		metric.WithDescription("The number of articles that aborted the run"),
		metric.WithUnit("{articles}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for scraper.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.AppMetrics = &AppMetrics{
		ArticlesFoundCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				articlesFoundCounter.Add(ctx, count)
			}
		},
		ArticlesParsedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				articlesParsedCounter.Add(ctx, count)
			}
		},
		FailedArticleCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				articlesFailedCounter.Add(ctx, count)
			}
		},
	}

	// initialize metrics in DataDog for setup UI
	if cfg.TelemetrySettings.Enabled {
		metricsProvider.KafkaProducerMetrics.SuccessfullySendMsgCnt(1)
		metricsProvider.KafkaProducerMetrics.FailedSendMsgCnt(1)
		metricsProvider.AppMetrics.ArticlesFoundCnt(1)
		metricsProvider.AppMetrics.ArticlesParsedCnt(1)
		metricsProvider.AppMetrics.FailedArticleCnt(1)
	}

	return metricsProvider
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResourceDetector := ecs.NewResourceDetector()
	ecsResource, err := ecsResourceDetector.Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	keyValue, found := ecsResource.Set().Value("container.id")
	var serviceId string
	if found {
		serviceId = keyValue.AsString()
	} else {
		serviceId = uuid.New().String()
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, resource resource.Resource) *sdkmetric.MeterProvider {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(&resource),
	)
	return meterProvider
}
