package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	IngestInit InternalStatus = "IngestInit"
	Converting InternalStatus = "Converting"
	Error      InternalStatus = "Error"
	Complete   InternalStatus = "Complete"

	JobTypeConvert JobType = "Convert"
)

// Job is the server-side record of one ConversionJob as it moves through the
// worker pool.
type Job struct {
	Id          string            `json:"id"`
	TraceId     string            `json:"trace_id"`
	JobType     JobType           `json:"job_type"`
	Conversion  ConversionJob     `json:"conversion"`
	Result      *ProcessingResult `json:"result,omitempty"`
	Error       JobError          `json:"error,omitempty"`
	CreatedTime time.Time         `json:"created_time"`
	EndTime     time.Time         `json:"end_time,omitempty"`
	Status      JobStatus         `json:"status"`
	CurrentStep InternalStatus    `json:"current_step"`
	// Upload marks Conversion.Source as a server-side copy that is removed
	// once the job ends.
	Upload bool `json:"upload,omitempty"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// ConversionJob is one accepted source. It is consumed by exactly one
// conversion attempt.
type ConversionJob struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	DocumentID  string         `json:"document_id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	// Index stores the produced chunks in the vector index once written.
	Index bool `json:"index,omitempty"`
}

type ProcessingResult struct {
	Success      bool          `json:"success"`
	Source       string        `json:"input_source"`
	OutputPath   string        `json:"output_json,omitempty"`
	MarkdownPath string        `json:"markdown_path,omitempty"`
	Name         string        `json:"name,omitempty"`
	DocumentID   string        `json:"document_id,omitempty"`
	NumChunks    int           `json:"num_chunks"`
	NumOCRChunks int           `json:"num_ocr_chunks"`
	TotalChunks  int           `json:"total_chunks"`
	Reason       string        `json:"reason,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

type BatchResult struct {
	Results   []ProcessingResult `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
