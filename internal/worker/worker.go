package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/job"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/internal/pipeline"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

var (
	_jobService        *job.Service
	_pipeline          pipeline.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	busyWorkerCount    int64
	logger             = logger_i.NewLogger("WorkerPool")
	minWorkerCount     = config.MinWorkerCount
	maxWorkerCount     = config.MaxWorkerCount
	idleWorkerTimeout  = config.IdleWorkerTimeout
)

func InitServices(jobService *job.Service, pipelineService pipeline.Service) {
	_jobService = jobService
	_pipeline = pipelineService
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger.Info("Initializing worker pool", "min", minWorkerCount, "max", maxWorkerCount)
	go dispatcher()
}

// dispatcher keeps one worker alive and grows the pool while queued
// documents outnumber idle workers.
func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for range dispatcherChannel {
		if !needsWorker() {
			continue
		}
		if reserveWorkerSlot() {
			startWorker()
		}
	}
}

func needsWorker() bool {
	idle := atomic.LoadInt64(&currentWorkerCount) - atomic.LoadInt64(&busyWorkerCount)
	return int64(len(_jobService.JobChannel)) > idle
}

// reserveWorkerSlot bumps the worker count unless the pool is full.
func reserveWorkerSlot() bool {
	for {
		n := atomic.LoadInt64(&currentWorkerCount)
		if n >= maxWorkerCount {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, n, n+1) {
			return true
		}
	}
}

// releaseIdleSlot drops the worker count only while it stays above the
// minimum, so concurrent idle timeouts cannot shrink the pool below it.
func releaseIdleSlot() bool {
	for {
		n := atomic.LoadInt64(&currentWorkerCount)
		if n <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, n, n-1) {
			return true
		}
	}
}

func createWorker() {
	atomic.AddInt64(&currentWorkerCount, 1)
	startWorker()
}

func startWorker() {
	workerWaitGroup.Add(1)
	go worker()
	metrics.IncrementActiveWorkerCount()
	logger.Debug("Created new worker", "workerCount", atomic.LoadInt64(&currentWorkerCount))
}

func worker() {
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			atomic.AddInt64(&busyWorkerCount, 1)
			executeJob(currentJob)
			atomic.AddInt64(&busyWorkerCount, -1)
			metrics.DecrementJobsInQueue()

		case <-stopWorkerChannel:
			atomic.AddInt64(&currentWorkerCount, -1)
			removeWorker("Stop worker signal received")
			return

		case <-time.After(idleWorkerTimeout):
			if releaseIdleSlot() {
				removeWorker("Idle worker timeout")
				return
			}
		}
	}
}
