package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
	"github.com/vestnik/vesti-scraper/config"
	"github.com/vestnik/vesti-scraper/internal/model"
	"github.com/vestnik/vesti-scraper/internal/telemetry"
)

// KafkaNotifierClient announces stored articles to downstream
// consumers. It drains the task channel, batching writes until the
// batch fills or the ticker fires.
type KafkaNotifierClient struct {
	taskChan    <-chan *model.NotifierTask
	kafkaWriter *kafka.Writer
	metrics     *telemetry.KafkaProducerMetrics
	cfg         *config.ProducerConfig
	wg          *sync.WaitGroup
}

func NewKafkaNotifier(taskChan <-chan *model.NotifierTask, metrics *telemetry.KafkaProducerMetrics,
	cfg *config.ProducerConfig, wg *sync.WaitGroup) *KafkaNotifierClient {
	kafkaWriter := kafka.Writer{
		Addr:         kafka.TCP(cfg.Addr...),
		Topic:        cfg.WriteTopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 100 * time.Millisecond,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	return &KafkaNotifierClient{
		taskChan:    taskChan,
		kafkaWriter: &kafkaWriter,
		metrics:     metrics,
		cfg:         cfg,
		wg:          wg,
	}
}

func (n *KafkaNotifierClient) Run() {
	slog.Info("starting kafka notifier...", slog.String("topic", n.cfg.WriteTopicName))
	defer func() {
		err := n.kafkaWriter.Close()
		if err != nil {
			slog.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()
	defer n.wg.Done()

	batch := make([]kafka.Message, 0, n.cfg.BatchSize)
	batchTicker := time.NewTicker(n.cfg.BatchTimeout)
	for {
		select {
		case <-batchTicker.C:
			if len(batch) == 0 {
				continue
			}
			n.writeMessage(batch)
			batch = batch[:0]
		case task, ok := <-n.taskChan:
			if !ok {
				if len(batch) > 0 {
					n.writeMessage(batch)
				}
				slog.Info("stopping kafka writer.")
				return
			}
			body, err := json.Marshal(task)
			if err != nil {
				slog.Error("marshaling error.", slog.String("err", err.Error()), slog.Any("task", task))
				n.metrics.FailedSendMsgCnt(1)
				continue
			}
			batch = append(batch, kafka.Message{
				Key:   []byte(task.URL),
				Value: body,
			})
		default:
			if len(batch) >= n.cfg.BatchSize {
				n.writeMessage(batch)
				batch = batch[:0]
				batchTicker.Reset(n.cfg.BatchTimeout)
			}
		}
	}
}

func (n *KafkaNotifierClient) writeMessage(batch []kafka.Message) {
	err := n.kafkaWriter.WriteMessages(context.Background(), batch...)
	if err != nil {
		slog.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
		n.metrics.FailedSendMsgCnt(int64(len(batch)))
		return
	}
	n.metrics.SuccessfullySendMsgCnt(int64(len(batch)))
	slog.Debug("successfully sent messages to kafka.", slog.Int("batch length", len(batch)))
}
