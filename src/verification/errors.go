package verification

import (
	"fmt"
	"strings"
)

// Problem is one rejected field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError means the request itself is unusable. Retrying the same
// request will fail the same way.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Field+": "+p.Message)
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// InternalFault is a failure of the service itself; callers may retry.
type InternalFault struct {
	Op  string
	Err error
}

func (e *InternalFault) Error() string {
	return fmt.Sprintf("internal fault during %s: %v", e.Op, e.Err)
}

func (e *InternalFault) Unwrap() error { return e.Err }
