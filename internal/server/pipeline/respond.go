package pipeline

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/goccy/go-json"

	"clan-portal/backend/internal/apperror"
)

// SuccessBody is the envelope of every successful response.
type SuccessBody struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorBody is the envelope of classified errors.
type ErrorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// unknownErrorBody is written for errors that carry no classification.
type unknownErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Responder writes JSON envelopes. A Fatal error is written as a 500 and then
// the process exits through Exit.
type Responder struct {
	Exit func(code int)
}

// NewResponder returns a Responder that exits with os.Exit on fatal errors.
func NewResponder() *Responder {
	return &Responder{Exit: os.Exit}
}

// JSON writes v with status.
func (rs *Responder) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("pipeline: write response: %v", err)
	}
}

// Success writes 200 {message, data}. data is omitted when nil.
func (rs *Responder) Success(w http.ResponseWriter, message string, data any) {
	rs.JSON(w, http.StatusOK, SuccessBody{Message: message, Data: data})
}

// Error writes the envelope for err.
func (rs *Responder) Error(w http.ResponseWriter, err error) {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		log.Printf("pipeline: unclassified error: %v", err)
		rs.JSON(w, http.StatusInternalServerError, unknownErrorBody{Status: "error", Message: "Internal server error"})
		return
	}
	if ae.Kind == apperror.KindInternal && ae.Err != nil {
		log.Printf("pipeline: internal error: %v", ae.Err)
	}
	rs.JSON(w, ae.Status(), ErrorBody{Status: ae.Status(), Error: ae.Kind.Label(), Message: ae.Message})
	if ae.Kind == apperror.KindFatal {
		log.Printf("pipeline: fatal error, shutting down: %v", err)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		if rs.Exit != nil {
			rs.Exit(1)
		}
	}
}
