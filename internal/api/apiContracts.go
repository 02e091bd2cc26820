package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

// ConversionResponse is the outcome of a finished job.
type ConversionResponse struct {
	Source       string  `json:"input_source" example:"report.pdf"`
	DocumentID   string  `json:"document_id" example:"2f6c0c7e-55a1-4a39-9c43-6b0a5f4a1c11"`
	Name         string  `json:"name" example:"report.pdf"`
	NumChunks    int     `json:"num_chunks" example:"42"`
	NumOCRChunks int     `json:"num_ocr_chunks" example:"3"`
	TotalChunks  int     `json:"total_chunks" example:"45"`
	ChunksURL    string  `json:"chunks_url,omitempty" example:"documents/job_cz109/chunks"`
	Seconds      float64 `json:"processing_seconds" example:"3.2"`
	Reason       string  `json:"reason,omitempty" example:"UnsupportedFormat"`
}

type Result struct {
	Status     string              `json:"status" example:"COMPLETE"`
	Step       string              `json:"step,omitempty" example:"Converting"`
	Conversion *ConversionResponse `json:"conversion,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type FormatsResponse struct {
	Formats []string `json:"formats"`
}

// requests---------------------

// IngestRequest queues a remote document. Uploads use multipart/form-data
// with the same field names instead.
type IngestRequest struct {
	URL        string         `json:"url" validate:"required" example:"https://example.com/report.pdf"`
	Name       string         `json:"document_name,omitempty" example:"Annual report"`
	DocumentID string         `json:"document_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Index      bool           `json:"index,omitempty"`
}
