package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/GoChunker/internal/api"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result: api.Result{
			Status:     string(job.Status),
			Step:       string(job.CurrentStep),
			Conversion: ToConversionResponse(job.Id, job.Result),
		},
	}
}

// ToConversionResponse hides server paths; chunks are fetched through the
// API instead.
func ToConversionResponse(jobId string, res *jobModel.ProcessingResult) *api.ConversionResponse {
	if res == nil {
		return nil
	}
	out := &api.ConversionResponse{
		Source:       res.Source,
		DocumentID:   res.DocumentID,
		Name:         res.Name,
		NumChunks:    res.NumChunks,
		NumOCRChunks: res.NumOCRChunks,
		TotalChunks:  res.TotalChunks,
		Seconds:      res.Duration.Seconds(),
		Reason:       res.Reason,
	}
	if res.Success {
		out.ChunksURL = fmt.Sprintf("documents/%s/chunks", jobId)
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
