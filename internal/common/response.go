package common

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const genericErrorMessage = "Something went wrong. Please try again."

// Envelope is the body of every successful response; "success" is added on write.
type Envelope map[string]interface{}

type ErrorResponse struct {
	Success           bool     `json:"success"`
	Error             string   `json:"error"`
	Code              string   `json:"code,omitempty"`
	Details           []string `json:"details,omitempty"`
	ExistingProblemID string   `json:"existingProblemId,omitempty"`
	RetryAfter        int      `json:"retryAfter,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithAppError writes the response for a service-layer error. Unexpected
// errors are logged with the request id and replaced by a generic message.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatusFromError(err)
	resp := ErrorResponse{Error: err.Error(), Code: ErrorCode(err)}

	if status == http.StatusInternalServerError {
		slog.Error("unexpected error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
		resp.Error = genericErrorMessage
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Error = ErrValidation.Error()
		resp.Details = verr.Details
	}
	var dup *DuplicateProblemError
	if errors.As(err, &dup) {
		resp.ExistingProblemID = dup.ExistingProblemID
	}

	RespondWithJSON(w, status, resp)
}

// RespondWithSuccess writes body with "success": true.
func RespondWithSuccess(w http.ResponseWriter, code int, body Envelope) {
	if body == nil {
		body = Envelope{}
	}
	body["success"] = true
	RespondWithJSON(w, code, body)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
