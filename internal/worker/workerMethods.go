package worker

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	jobmodel "github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.JobTimeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id)
	log.Debug("Processing job")

	job.CurrentStep = jobmodel.Converting
	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	res := _pipeline.Process(ctx, job.Conversion)
	job.Result = &res
	job.EndTime = time.Now()
	if job.Upload {
		// uploads live in a directory of their own
		if err := os.RemoveAll(filepath.Dir(job.Conversion.Source)); err != nil {
			log.Warn("Failed to remove uploaded file", "path", job.Conversion.Source, "err", err)
		}
	}

	if !res.Success {
		job.CurrentStep = jobmodel.Error
		job.Error = jobErrorFor(res)
		log.Warn("Job failed", "reason", res.Reason)
		saveJobState(ctx, job, jobmodel.JobStatusError)
		return
	}
	job.CurrentStep = jobmodel.Complete
	saveJobState(ctx, job, jobmodel.JobStatusComplete)
}

// jobErrorFor maps a failed result onto the HTTP-style error kept on the
// job record. Only transient source problems are worth retrying.
func jobErrorFor(res jobmodel.ProcessingResult) jobmodel.JobError {
	e := jobmodel.JobError{Code: http.StatusInternalServerError, Message: res.Error}
	switch res.Reason {
	case "UnsupportedFormat":
		e.Code = http.StatusUnsupportedMediaType
	case "SourceUnavailable":
		e.Code = http.StatusBadGateway
		e.Retry = true
	case "ConversionFailure":
		e.Code = http.StatusUnprocessableEntity
	}
	return e
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job status", "jobId", job.Id, "err", err)
	}
}
