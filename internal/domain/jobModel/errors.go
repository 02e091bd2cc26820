package jobModel

import (
	"errors"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrConversionFailure = errors.New("conversion failure")
	ErrWriteFailure      = errors.New("write failure")
	ErrEnrichmentFailure = errors.New("enrichment failure")
)

// Reason names the error kind reported in ProcessingResult.Reason.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "SourceUnavailable"
	case errors.Is(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case errors.Is(err, ErrConversionFailure):
		return "ConversionFailure"
	case errors.Is(err, ErrWriteFailure):
		return "WriteFailure"
	case errors.Is(err, ErrEnrichmentFailure):
		return "EnrichmentFailure"
	}
	return "Internal"
}
