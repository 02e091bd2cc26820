package job

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/akolanti/GoChunker/internal/domain/jobModel"
)

const defaultUploadDir = "temporary_data"

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	// OutputDir holds one sub-directory of chunk files per job.
	OutputDir string
	// UploadDir receives multipart uploads until their job ends.
	UploadDir string
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	OutputDir         string
	UploadDir         string
}

func InitJobService(cfg ServiceConfig) *Service {
	s := &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		OutputDir:         cfg.OutputDir,
		UploadDir:         cfg.UploadDir,
	}
	if s.UploadDir == "" {
		if wd, err := os.Getwd(); err == nil {
			s.UploadDir = filepath.Join(wd, defaultUploadDir)
		}
	}
	return s
}

// OutputDirFor ends in a separator so the pipeline treats it as a
// directory and names the chunk file after the source.
func (s *Service) OutputDirFor(jobId string) string {
	return filepath.Join(s.OutputDir, jobId) + string(os.PathSeparator)
}

// UploadDirFor creates the private directory an upload of jobId is stored
// in. The worker removes it once the job ends.
func (s *Service) UploadDirFor(jobId string) (string, error) {
	if s.UploadDir == "" {
		return "", fmt.Errorf("no upload directory configured")
	}
	dir := filepath.Join(s.UploadDir, jobId)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	return dir, nil
}
