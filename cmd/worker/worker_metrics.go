package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"karriere-harvester/internal/crawler"
	"karriere-harvester/internal/models"
)

// workerMetrics are the worker's Prometheus series.
// received: requests pulled from Kafka; skipped: deduped; succeeded/empty/failed: run outcome.
type workerMetrics struct {
	runsReceived  prometheus.Counter
	runsSkipped   prometheus.Counter
	runsSucceeded prometheus.Counter
	runsEmpty     prometheus.Counter
	runsFailed    prometheus.Counter
	runsInFlight  prometheus.Gauge

	recordsExtracted   prometheus.Counter
	recordsPublished   prometheus.Counter
	extractionFailures prometheus.Counter
	secondsPerRecord   prometheus.Histogram
	runDuration        prometheus.Histogram
	commitErrors       prometheus.Counter

	proxyInfo *prometheus.GaugeVec
}

func newWorkerMetrics(reg prometheus.Registerer) *workerMetrics {
	factory := promauto.With(reg)
	factory.NewGauge(prometheus.GaugeOpts{Name: "karriere_worker_up", Help: "Worker process is running"}).Set(1)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Name: "karriere_worker_" + name, Help: help})
	}
	return &workerMetrics{
		runsReceived:  counter("runs_received_total", "Crawl requests pulled from Kafka"),
		runsSkipped:   counter("runs_skipped_total", "Crawl requests skipped as duplicates"),
		runsSucceeded: counter("runs_succeeded_total", "Runs that produced records"),
		runsEmpty:     counter("runs_empty_total", "Runs that finished without records"),
		runsFailed:    counter("runs_failed_total", "Runs that ended with an error"),
		runsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "karriere_worker_runs_in_flight",
			Help: "Runs currently being harvested",
		}),
		recordsExtracted:   counter("records_extracted_total", "Rows turned into records"),
		recordsPublished:   counter("records_published_total", "Deduplicated records written to the results topic"),
		extractionFailures: counter("extraction_failures_total", "Rows dropped by a failed extraction"),
		secondsPerRecord: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "karriere_worker_seconds_per_record",
			Help:    "Seconds spent per listing row, observed once per finished URL",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "karriere_worker_run_duration_seconds",
			Help:    "Wall-clock duration of a run",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		commitErrors: counter("commit_errors_total", "Kafka commit failures"),
		proxyInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "karriere_worker_proxy_info",
			Help: "Egress proxy of the last session (1 = current)",
		}, []string{"proxy"}),
	}
}

// setProxy marks proxy as the current egress.
func (m *workerMetrics) setProxy(proxy string) {
	m.proxyInfo.Reset()
	m.proxyInfo.WithLabelValues(proxy).Set(1)
}

// observer feeds crawl events into the metrics.
func (m *workerMetrics) observer() crawler.Observer {
	return metricsObserver{m: m}
}

type metricsObserver struct {
	m *workerMetrics
}

func (o metricsObserver) RecordExtracted(context.Context, models.CrawlTarget, int, models.JobRecord) {
	o.m.recordsExtracted.Inc()
}

func (o metricsObserver) ExtractionFailed(context.Context, models.ExtractionFailure) {
	o.m.extractionFailures.Inc()
}

func (o metricsObserver) URLFinished(_ context.Context, _ models.CrawlTarget, report models.URLReport) {
	if report.ItemsSeen > 0 {
		o.m.secondsPerRecord.Observe(report.SecondsPerItem)
	}
}
