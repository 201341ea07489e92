package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"karriere-harvester/common"
	"karriere-harvester/internal/config"
	"karriere-harvester/internal/graph"
	hkafka "karriere-harvester/internal/kafka"
	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/metrics"
)

// consumerMetrics count one topic's throughput.
// received: messages fetched; failed: Neo4j write errors; written: applied writes.
type consumerMetrics struct {
	received prometheus.Counter
	failed   prometheus.Counter
	written  prometheus.Counter
}

func newConsumerMetrics(reg prometheus.Registerer) (results, edges consumerMetrics) {
	factory := promauto.With(reg)
	factory.NewGauge(prometheus.GaugeOpts{Name: "karriere_graph_writer_up", Help: "Graph writer process is running"}).Set(1)
	vec := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karriere_graph_writer_" + name,
			Help: help,
		}, []string{"stream"})
	}
	received := vec("messages_received_total", "Messages fetched from Kafka")
	failed := vec("messages_failed_total", "Messages whose Neo4j write failed")
	written := vec("messages_written_total", "Messages applied to Neo4j")
	build := func(stream string) consumerMetrics {
		return consumerMetrics{
			received: received.WithLabelValues(stream),
			failed:   failed.WithLabelValues(stream),
			written:  written.WithLabelValues(stream),
		}
	}
	return build("results"), build("edges")
}

// consumer feeds one topic into one write function.
type consumer struct {
	name    string
	reader  hkafka.MessageReader
	write   func(ctx context.Context, payload []byte) error
	metrics consumerMetrics
	backoff time.Duration
	log     logger.Logger
}

func main() {
	cfg, err := config.Load(common.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	driver, err := graph.NewDriver(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		log.Error("neo4j driver error", logger.Error(err))
		return
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			log.Warn("neo4j close error", logger.Error(err))
		}
	}()
	writer := graph.NewWriter(driver, log)

	resultsReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Kafka.Broker},
		Topic:   cfg.Kafka.ResultsTopic,
		GroupID: cfg.Kafka.ResultsGroup,
	})
	defer func() {
		if err := resultsReader.Close(); err != nil {
			log.Warn("results reader close error", logger.Error(err))
		}
	}()

	edgesReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Kafka.Broker},
		Topic:   cfg.Kafka.EdgesTopic,
		GroupID: cfg.Kafka.EdgesGroup,
	})
	defer func() {
		if err := edgesReader.Close(); err != nil {
			log.Warn("edges reader close error", logger.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	resultsMetrics, edgesMetrics := newConsumerMetrics(reg)
	if cfg.Graph.MetricsAddr != "" {
		metrics.StartServer(ctx, cfg.Graph.MetricsAddr, reg, log)
	}

	consumers := []*consumer{
		newConsumer("results", resultsReader, writer.WriteResult, resultsMetrics, log),
		newConsumer("edges", edgesReader, writer.WriteEdge, edgesMetrics, log),
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *consumer) {
			defer wg.Done()
			c.run(ctx)
		}(c)
	}
	log.Info("graph writer consuming",
		logger.String("results_topic", cfg.Kafka.ResultsTopic),
		logger.String("edges_topic", cfg.Kafka.EdgesTopic),
	)
	wg.Wait()
}

func newConsumer(
	name string,
	reader hkafka.MessageReader,
	write func(ctx context.Context, payload []byte) error,
	m consumerMetrics,
	log logger.Logger,
) *consumer {
	return &consumer{
		name:    name,
		reader:  reader,
		write:   write,
		metrics: m,
		backoff: 500 * time.Millisecond,
		log:     log.With(logger.String("stream", name)),
	}
}

// run applies messages until ctx is done. A failed write is left
// uncommitted so the group redelivers it after a restart.
func (c *consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("fetch error", logger.Error(err))
			if !sleepCtx(ctx, c.backoff) {
				return
			}
			continue
		}

		c.metrics.received.Inc()
		if err := c.write(ctx, msg.Value); err != nil {
			c.metrics.failed.Inc()
			c.log.Error("write error", logger.Int64("offset", msg.Offset), logger.Error(err))
			continue
		}
		c.metrics.written.Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("commit error", logger.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
