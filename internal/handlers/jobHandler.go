package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/job"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
	logRH           = logger_i.NewLogger("RequestHandler")

	errQueueClosed = errors.New("request cancelled before the job was queued")
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}
		logJH.Info("Starting job handler", "outputDir", jobService.OutputDir, "uploadDir", jobService.UploadDir)
	})
}

// CreateNewJob records the job as queued and hands it to the worker pool.
func CreateNewJob(ctx context.Context, newJob newJobData) error {
	logJH.With("traceId", newJob.traceId, "jobId", newJob.id).Info("Creating new job", "source", newJob.conversion.Source)
	return handlerInstance.pushToJobChannel(ctx, newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func (h *JobHandler) pushToJobChannel(ctx context.Context, newJob newJobData) error {
	_job := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		JobType:     jobModel.JobTypeConvert,
		Conversion:  newJob.conversion,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.IngestInit,
		Upload:      newJob.upload,
	}

	storeCtx := context.WithValue(context.Background(), config.TRACE_ID_KEY, newJob.traceId)
	if err := h.service.JobStore.SaveJob(storeCtx, _job); err != nil {
		logJH.Error("Failed to save queued job", "jobId", _job.Id, "err", err)
	}

	//a full queue pushes back on the client instead of growing without bound
	select {
	case h.service.JobChannel <- _job:
	case <-ctx.Done():
		h.service.JobStore.DeleteJob(storeCtx, _job.Id)
		return errQueueClosed
	}
	metrics.IncrementJobsInQueue()
	logJH.Debug("Queued job", "jobId", _job.Id)

	//conversions are long running, so every job asks the dispatcher for a
	//worker; idle workers retire on their own
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	select {
	case h.service.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
		logJH.Debug("Signalled dispatcher", "requestCount", accurateCount)
	default:
	}
	return nil
}
