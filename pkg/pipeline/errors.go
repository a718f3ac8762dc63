package pipeline

import "errors"

var (
	// ErrRead marks an image file that could not be opened or read.
	ErrRead = errors.New("image read failed")

	// ErrInference marks a detector failure for a given image.
	ErrInference = errors.New("inference failed")

	// ErrPersist marks a store write failure; the image's fingerprint stays
	// uncommitted and a later run retries it.
	ErrPersist = errors.New("persist failed")
)

// Failure reason tags used in run summaries.
const (
	ReasonRead      = "read_error"
	ReasonInference = "inference_error"
	ReasonPersist   = "persist_error"
)

// ReasonFor maps a per-image error to its summary reason tag.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrRead):
		return ReasonRead
	case errors.Is(err, ErrInference):
		return ReasonInference
	case errors.Is(err, ErrPersist):
		return ReasonPersist
	default:
		return "error"
	}
}
