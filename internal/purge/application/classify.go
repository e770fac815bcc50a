package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

// Outcome is the class of a delete call result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeRateLimited
	OutcomeQuotaExhausted
	OutcomeUnavailable
	OutcomeCanceled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// quotaMarkers identify billing or spend cap exhaustion in free-text errors.
// The 402 status is matched on the code, never as a substring, because ids
// and paths in error messages are long digit runs.
var quotaMarkers = []string{
	"payment required",
	"credits",
	"spend cap",
	"usage cap",
}

// Classify maps a delete call error to an Outcome. Typed errors win; the
// text heuristics only look at what the API itself said, or at untyped
// errors. Deadline errors such as an HTTP client timeout are failures:
// whether the run was interrupted is decided by the caller's context.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, domain.ErrQuotaExhausted):
		return OutcomeQuotaExhausted
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, domain.ErrTransportUnavailable):
		return OutcomeUnavailable
	}

	var problem domain.RemoteProblem
	if errors.As(err, &problem) {
		if problem.Status() == http.StatusPaymentRequired || mentionsQuota(problem.Problem()) {
			return OutcomeQuotaExhausted
		}
		return OutcomeFailed
	}
	if errors.Is(err, domain.ErrRequestFailed) {
		return OutcomeFailed
	}
	if mentionsQuota(err.Error()) {
		return OutcomeQuotaExhausted
	}
	return OutcomeFailed
}

func mentionsQuota(text string) bool {
	text = strings.ToLower(text)
	for _, marker := range quotaMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
