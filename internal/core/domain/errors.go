package domain

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Domain errors represent engine-level failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient indicates a remote failure that is safe to retry:
	// rate-limit responses, timeouts, 5xx-equivalents.
	ErrTransient = errors.New("transient remote error")

	// ErrPermanent indicates a remote failure that retrying cannot fix:
	// authorisation failures, malformed requests.
	ErrPermanent = errors.New("permanent remote error")

	// ErrContentExtraction indicates a single document was unreadable or
	// inaccessible. The document is skipped; the run continues.
	ErrContentExtraction = errors.New("content extraction failed")

	// ErrCircuitOpen indicates the endpoint's circuit breaker is open and
	// calls are failing fast during the cool-down window.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRerankUnavailable indicates reranking failed after retries.
	// Search degrades to the pre-rerank ordering instead of failing.
	ErrRerankUnavailable = errors.New("reranking unavailable")
)

// ConsistencyWarning reports a vector key present in one store but not
// the other. It is surfaced, not auto-healed: healing requires a full
// re-chunk of the document.
type ConsistencyWarning struct {
	Key         string
	PresentIn   string
	MissingFrom string
}

func (w ConsistencyWarning) String() string {
	return "vector " + w.Key + " present in " + w.PresentIn + " but missing from " + w.MissingFrom
}

// IsTransient reports whether err should be retried.
// Recognises the ErrTransient sentinel, HTTP 429/5xx from googleapi and
// our own remote adapters, and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
			return true
		}
	}
	return false
}

// ClassifyStatus maps an HTTP status code to the transient/permanent
// taxonomy. Used by remote adapters when wrapping response errors.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return ErrTransient
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusBadRequest:
		return ErrPermanent
	default:
		return ErrPermanent
	}
}
