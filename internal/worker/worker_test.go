package worker

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/job"
	"github.com/akolanti/GoChunker/internal/pipeline"
)

type MockPipeline struct {
	ProcessedCount int32
	OnProcess      func(ctx context.Context, j jobModel.ConversionJob) jobModel.ProcessingResult
}

func (m *MockPipeline) Process(ctx context.Context, j jobModel.ConversionJob) jobModel.ProcessingResult {
	atomic.AddInt32(&m.ProcessedCount, 1)
	if m.OnProcess != nil {
		return m.OnProcess(ctx, j)
	}
	return jobModel.ProcessingResult{Success: true, Source: j.Source}
}

func (m *MockPipeline) ProcessBatch(ctx context.Context, sources []string, destDir string, maxConcurrent int) jobModel.BatchResult {
	return jobModel.BatchResult{}
}

func (m *MockPipeline) Stats() pipeline.Stats { return pipeline.Stats{} }

func (m *MockPipeline) Close() error { return nil }

type MockJobStore struct {
	mu        sync.Mutex
	saved     []jobModel.Job
	OnSaveJob func(ctx context.Context, job jobModel.Job) error
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].Id == jobId {
			return m.saved[i], true
		}
	}
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	m.saved = append(m.saved, j)
	m.mu.Unlock()
	if m.OnSaveJob != nil {
		return m.OnSaveJob(ctx, j)
	}
	return nil
}

func TestWorkerPool_Flow(t *testing.T) {
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          &MockJobStore{},
	}
	mockPipeline := &MockPipeline{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	atomic.StoreInt64(&currentWorkerCount, 0)
	InitServices(jobSvc, mockPipeline)
	InitWorkerPool(stopChan, wg)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true
		time.Sleep(50 * time.Millisecond)

		if count := atomic.LoadInt64(&currentWorkerCount); count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes a job", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "test-1", Conversion: jobModel.ConversionJob{Source: "a.pdf"}}
		time.Sleep(50 * time.Millisecond)

		if processed := atomic.LoadInt32(&mockPipeline.ProcessedCount); processed != 1 {
			t.Errorf("Expected 1 job processed, got %d", processed)
		}
		got, found := jobSvc.JobStore.GetJob(context.Background(), "test-1")
		if !found || got.Status != jobModel.JobStatusComplete || got.Result == nil || !got.Result.Success {
			t.Errorf("expected a completed job with a result, got %+v", got)
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestExecuteJob_FailureAndUploadCleanup(t *testing.T) {
	uploadDir := filepath.Join(t.TempDir(), "job-bad")
	if err := os.Mkdir(uploadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	upload := filepath.Join(uploadDir, "upload.zip")
	if err := os.WriteFile(upload, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := &MockJobStore{}
	_jobService = &job.Service{JobStore: store}
	_pipeline = &MockPipeline{OnProcess: func(ctx context.Context, j jobModel.ConversionJob) jobModel.ProcessingResult {
		return jobModel.ProcessingResult{Source: j.Source, Reason: "UnsupportedFormat", Error: `unsupported format: ".zip"`}
	}}

	executeJob(jobModel.Job{Id: "bad", Upload: true, Conversion: jobModel.ConversionJob{Source: upload}})

	got, _ := store.GetJob(context.Background(), "bad")
	if got.Status != jobModel.JobStatusError || got.CurrentStep != jobModel.Error {
		t.Errorf("expected an errored job, got %s/%s", got.Status, got.CurrentStep)
	}
	if got.Error.Code != http.StatusUnsupportedMediaType || got.Error.Retry {
		t.Errorf("unexpected job error %+v", got.Error)
	}
	if _, err := os.Stat(uploadDir); !os.IsNotExist(err) {
		t.Errorf("upload directory should be removed, stat %v", err)
	}
}

func TestJobErrorFor(t *testing.T) {
	tests := []struct {
		reason string
		code   int
		retry  bool
	}{
		{"SourceUnavailable", http.StatusBadGateway, true},
		{"UnsupportedFormat", http.StatusUnsupportedMediaType, false},
		{"ConversionFailure", http.StatusUnprocessableEntity, false},
		{"WriteFailure", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			e := jobErrorFor(jobModel.ProcessingResult{Reason: tt.reason, Error: "boom"})
			if e.Code != tt.code || e.Retry != tt.retry || e.Message != "boom" {
				t.Errorf("got %+v", e)
			}
		})
	}
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 0)
	idleWorkerTimeout = 50 * time.Millisecond
	_jobService = &job.Service{JobChannel: make(chan jobModel.Job)}
	_pipeline = &MockPipeline{}

	workerWaitGroup = &sync.WaitGroup{}
	stopWorkerChannel = make(chan bool)

	createWorker()
	time.Sleep(200 * time.Millisecond)

	if count := atomic.LoadInt64(&currentWorkerCount); count != 0 {
		t.Errorf("Worker should have timed out and retired, but count is %d", count)
	}
}

func TestDispatcherScaling(t *testing.T) {
	savedMax := maxWorkerCount
	defer func() { maxWorkerCount = savedMax }()
	maxWorkerCount = 2
	_jobService = &job.Service{JobChannel: make(chan jobModel.Job, 5)}
	atomic.StoreInt64(&currentWorkerCount, 1)
	atomic.StoreInt64(&busyWorkerCount, 0)

	if needsWorker() {
		t.Error("an idle worker with an empty queue needs no help")
	}
	_jobService.JobChannel <- jobModel.Job{Id: "a"}
	_jobService.JobChannel <- jobModel.Job{Id: "b"}
	if !needsWorker() {
		t.Error("two queued jobs and one idle worker should grow the pool")
	}

	if !reserveWorkerSlot() {
		t.Fatal("pool below max should accept a worker")
	}
	if reserveWorkerSlot() {
		t.Error("pool at max must not grow")
	}
	if got := atomic.LoadInt64(&currentWorkerCount); got != 2 {
		t.Errorf("expected 2 workers, got %d", got)
	}
	atomic.StoreInt64(&currentWorkerCount, 0)
}
