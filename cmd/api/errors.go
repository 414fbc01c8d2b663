package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// errorResponse is the body every failure returns, whatever the cause.
type errorResponse struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Path      string    `json:"path"`
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := errorResponse{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Error:     http.StatusText(status),
		Path:      r.URL.Path,
	}
	_ = writeJSON(w, status, resp)
}

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeErrorResponse(w, r, http.StatusInternalServerError, err.Error())
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorResponse(w, r, http.StatusNotFound, err.Error())
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("conflict", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeErrorResponse(w, r, http.StatusConflict, err.Error())
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorResponse(w, r, http.StatusUnauthorized, err.Error())
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, r, http.StatusForbidden, "insufficient privileges")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfter.String())
	writeErrorResponse(w, r, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter.String())
}

// pathNotFoundHandler serves the router's catch-all with a fixed message,
// so unknown routes do not leak anything about the URL space.
func (app *application) pathNotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, r, http.StatusNotFound, "Path not found")
}

// validationErrorResponse writes a 400 whose message joins every field
// violation, e.g. "key must be lowercase and underscore-separated, name is
// required". The whole request fails; nothing is persisted.
func (app *application) validationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.badRequestResponse(w, r, errors.New(validationMessage(err)))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" "+violationText(fe))
	}
	return strings.Join(parts, ", ")
}

func violationText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "email":
		return "invalid email format"
	case "rolekey":
		return "must be lowercase and underscore-separated"
	case "personname":
		return "must not contain numbers or invalid characters"
	case "uniquelist":
		return "must not contain duplicates"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
