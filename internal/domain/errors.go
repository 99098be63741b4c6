package domain

import "errors"

// Error kinds surfaced by the pipeline. Stage errors wrap one of these so
// callers can classify failures with errors.Is.
var (
	ErrIngestion     = errors.New("ingestion error")
	ErrEmbedding     = errors.New("embedding error")
	ErrIndex         = errors.New("index error")
	ErrGeneration    = errors.New("generation error")
	ErrConfiguration = errors.New("configuration error")
)

// Kind returns a short tag naming the error kind of err, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIngestion):
		return "ingestion"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrIndex):
		return "index"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}
