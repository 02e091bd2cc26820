package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/GoChunker/internal/handlers"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var logger = logger_i.NewLogger("middleware")

var GetHandler = Wrap(handlers.GetHandler)

var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var GetChunksHandler = Wrap(handlers.GetChunksHandler)
var GetFormatsHandler = Wrap(handlers.GetFormatsHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)

// Wrap runs trace injection, auth and rate limiting in front of next and
// counts the response by route pattern.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := processRequest(requestResponseStruct{req: r, writer: rec})
		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}
		metrics.HttpRequestsTotal.WithLabelValues(routeLabel(r), strconv.Itoa(rec.Status)).Inc()
	}
}

// routeLabel keeps job ids out of the metric labels.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re
	}
	return rateLimiter(re)
}
