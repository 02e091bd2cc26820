package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akolanti/GoChunker/internal/adapter"
	"github.com/akolanti/GoChunker/internal/adapter/utils"
	"github.com/akolanti/GoChunker/internal/api"
	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/customHttpClient"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/writer"
)

type newJobData struct {
	id         string
	traceId    string
	conversion jobModel.ConversionJob
	upload     bool
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetFormatsHandler godoc
// @Summary      Supported input formats
// @Description  Lists every file extension the pipeline accepts.
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  api.FormatsResponse
// @Router       /formats [get]
func GetFormatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.FormatsResponse{Formats: engine.SupportedFormats()})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse  "The current status of the job"
// @Failure      404  {object}  api.JobResponse  "Job not found"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceID(r.Context()))
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// GetChunksHandler godoc
// @Summary      Get the chunks of a converted document
// @Description  Returns the chunk document written by a completed job.
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  chunkModel.Document
// @Failure      404  {object}  api.JobResponse  "Job not found"
// @Failure      409  {object}  api.JobResponse  "Job has not completed"
// @Router       /documents/{id}/chunks [get]
func GetChunksHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceID(r.Context()))
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	if result.Status != jobModel.JobStatusComplete || result.Result == nil || !result.Result.Success {
		WriteErrorResponse(w, http.StatusConflict, idString, "Job has not completed: "+string(result.Status))
		return
	}
	doc, err := writer.ReadDocument(result.Result.OutputPath)
	if err != nil {
		logRH.Error("Could not read chunk output", "jobId", idString, "err", err)
		WriteErrorResponse(w, http.StatusGone, idString, "Chunk output is no longer available")
		return
	}
	writeJsonResponse(w, http.StatusOK, doc)
}

// PostIngestHandler godoc
// @Summary      Convert a document into chunks
// @Description  Queues a conversion job. Send either a multipart upload in the document field or a JSON body with a url.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        document       formData  file    false  "The document to convert"
// @Param        document_name  formData  string  false  "Display name of the document"
// @Param        metadata       formData  string  false  "JSON object merged into every chunk's metadata"
// @Param        index          formData  bool    false  "Store the chunks in the vector index"
// @Success      202  {object}  api.InitJobResponse  "Job accepted"
// @Failure      400  {object}  api.JobResponse  "Bad request"
// @Failure      415  {object}  api.JobResponse  "Unsupported format"
// @Failure      500  {object}  api.JobResponse  "Storage error"
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request", "remote", r.RemoteAddr)
		return
	}
	id := utils.GetNewUUID()
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		ingestUpload(w, r, id)
		return
	}
	ingestURL(w, r, id)
}

func ingestURL(w http.ResponseWriter, r *http.Request, id string) {
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the ingest reader", "err", err)
		}
	}(r.Body)

	var req api.IngestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}
	if !customHttpClient.IsRemote(req.URL) {
		WriteErrorResponse(w, http.StatusBadRequest, "", "url must be an http or https address")
		return
	}
	if !engine.IsSupported(req.URL) {
		WriteErrorResponse(w, http.StatusUnsupportedMediaType, "", "Unsupported format: "+engine.Ext(req.URL))
		return
	}
	processNewJobData(w, r, newJobData{
		id:      id,
		traceId: traceID(r.Context()),
		conversion: jobModel.ConversionJob{
			Source:      req.URL,
			Destination: handlerInstance.service.OutputDirFor(id),
			DocumentID:  req.DocumentID,
			Name:        req.Name,
			Metadata:    req.Metadata,
			Index:       req.Index,
		},
	})
}

func ingestUpload(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "", "File too large")
			return
		}
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad multipart request")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := filepath.Base(fileMetadata.Filename)
	if !engine.IsSupported(filename) {
		WriteErrorResponse(w, http.StatusUnsupportedMediaType, "", "Unsupported format: "+engine.Ext(filename))
		return
	}

	var meta map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "", "metadata must be a JSON object")
			return
		}
	}
	index, _ := strconv.ParseBool(r.FormValue("index"))

	targetDir, err := handlerInstance.service.UploadDirFor(id)
	if err != nil {
		logRH.Error("Couldn't get target directory", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage Error")
		return
	}
	tempFilePath := filepath.Join(targetDir, filename)
	if err := saveUpload(fileReader, tempFilePath); err != nil {
		logRH.Error("Could not store upload", "path", tempFilePath, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
		return
	}

	name := r.FormValue("document_name")
	if name == "" {
		name = filename
	}
	processNewJobData(w, r, newJobData{
		id:      id,
		traceId: traceID(r.Context()),
		upload:  true,
		conversion: jobModel.ConversionJob{
			Source:      tempFilePath,
			Destination: handlerInstance.service.OutputDirFor(id),
			DocumentID:  r.FormValue("document_id"),
			Name:        name,
			Metadata:    meta,
			Index:       index,
		},
	})
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}
