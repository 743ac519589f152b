package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/realfinder/verifier/src/verification"
)

type envelope struct {
	Error     string                 `json:"error"`
	Kind      string                 `json:"kind"`
	Retryable bool                   `json:"retryable"`
	Details   []verification.Problem `json:"details,omitempty"`
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *verification.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, envelope{
			Error:   verr.Error(),
			Kind:    "validation",
			Details: verr.Problems,
		})
		return
	}
	var fault *verification.InternalFault
	if errors.As(err, &fault) {
		c.JSON(http.StatusInternalServerError, envelope{
			Error:     "verification could not be completed",
			Kind:      "internal",
			Retryable: true,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, envelope{
		Error:     "internal error",
		Kind:      "internal",
		Retryable: true,
	})
}

func malformed(err error) error {
	return &verification.ValidationError{Problems: []verification.Problem{{
		Field:   "body",
		Message: "malformed JSON: " + err.Error(),
	}}}
}
