package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/logging"
	"github.com/realfinder/verifier/src/webclient"
)

// Failure classes. ErrTimeout and ErrRateLimited are both transient.
var (
	ErrProviderTransient = errors.New("provider transient failure")
	ErrProviderPermanent = errors.New("provider permanent failure")
	ErrTimeout           = errors.New("provider timeout")
	ErrRateLimited       = errors.New("provider rate limited")
	ErrGateClosed        = errors.New("analysis gate closed")
)

// errMalformed marks a reply that could not be parsed into a Result.
var errMalformed = errors.New("malformed provider reply")

// ProviderError is returned by Adapter.Analyze for every failed call.
type ProviderError struct {
	Kind       Kind
	Attempts   int
	StatusCode int
	// Class is one of the Err* sentinels above.
	Class error
	Err   error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("analysis %s: %v after %d attempt(s)", e.Kind, e.Class, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	out := []error{e.Class}
	if e.Class == ErrTimeout || e.Class == ErrRateLimited {
		out = append(out, ErrProviderTransient)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Transient reports whether err may succeed on a later try.
func Transient(err error) bool {
	return errors.Is(err, ErrProviderTransient)
}

// errQuotaWait is returned when pacing would overrun the caller deadline.
var errQuotaWait = errors.New("quota wait exceeds deadline")

// classify maps a raw attempt error onto a failure class and, when known,
// the provider HTTP status.
func classify(err error) (class error, status int) {
	var se *core.StatusError
	switch {
	case errors.Is(err, errQuotaWait):
		return ErrRateLimited, 0
	case errors.Is(err, ErrGateClosed):
		return ErrProviderPermanent, 0
	case errors.Is(err, errMalformed):
		return ErrProviderPermanent, 0
	case errors.As(err, &se):
		switch {
		case se.StatusCode == 429:
			return ErrRateLimited, se.StatusCode
		case se.StatusCode == 408:
			return ErrTimeout, se.StatusCode
		case webclient.IsTransientStatus(se.StatusCode):
			return ErrProviderTransient, se.StatusCode
		default:
			return ErrProviderPermanent, se.StatusCode
		}
	case errors.Is(err, context.DeadlineExceeded), logging.IsTimeout(err):
		return ErrTimeout, 0
	case logging.IsRateLimit(err):
		return ErrRateLimited, 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout, 0
	}
	return ErrProviderTransient, 0
}

// retryable decides whether the retry loop keeps going after err.
func retryable(err error) bool {
	if errors.Is(err, errQuotaWait) {
		return false
	}
	class, _ := classify(err)
	return class != ErrProviderPermanent
}
