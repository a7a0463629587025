package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
	"github.com/SyedDaiam9101/diagnosis-service/internal/validation"
)

// httpError maps known internal errors to an HTTP status and client message
func httpError(err error) (int, string) {
	var ve *validation.Error
	var ie *inference.InferenceError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()

	case errors.Is(err, inference.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model is not loaded"

	case errors.As(err, &ie):
		return http.StatusInternalServerError, fmt.Sprintf("internal error: %v", ie.Err)

	default:
		return http.StatusInternalServerError, fmt.Sprintf("internal error: %v", err)
	}
}
