package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gochunker_http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "gochunker_jobs_in_queue",
	Help: "Number of ingest jobs waiting for a worker",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "gochunker_dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "gochunker_active_worker_count",
	Help: "Number of active workers",
})

var documentsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "gochunker_documents_in_flight",
	Help: "Documents currently admitted to the pipeline",
})

var documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gochunker_documents_processed_total",
	Help: "Documents processed labelled by outcome",
}, []string{"outcome"})

var chunksWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gochunker_chunks_written_total",
	Help: "Chunks committed to output files labelled by content type",
}, []string{"content_type"})

var stageBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gochunker_stage_batch_size",
	Help:    "Number of pages handled per engine stage batch",
	Buckets: []float64{1, 2, 4, 8, 12, 16, 32},
}, []string{"stage"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func IncrementDocumentsInFlight() {
	documentsInFlight.Inc()
}

func DecrementDocumentsInFlight() {
	documentsInFlight.Dec()
}

// CaptureDocumentOutcome counts a finished document; outcome is "success" or
// the failure kind.
func CaptureDocumentOutcome(outcome string) {
	documentsProcessed.WithLabelValues(outcome).Inc()
}

func IncrementChunksWritten(contentType string) {
	chunksWritten.WithLabelValues(contentType).Inc()
}

func CaptureStageBatch(stage string, size int) {
	stageBatchSize.WithLabelValues(stage).Observe(float64(size))
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gochunker_process_document_duration_seconds",
	Help:    "Total time spent processing one document.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 120},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gochunker_dependency_latency_seconds",
	Help:    "Latency of conversion stages and external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
