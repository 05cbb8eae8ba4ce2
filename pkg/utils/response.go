package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// RespondJSON writes payload as JSON with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// RespondError writes a failure body without an error code.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondAppError maps err to its status and writes its code and message.
// Errors that are not AppErrors are reported as internal failures.
func RespondAppError(w http.ResponseWriter, err error) {
	code := appErrors.CodeOf(err)
	if code == appErrors.CodeUnknown {
		code = appErrors.CodeInternal
	}
	RespondJSON(w, appErrors.HTTPStatus(code), ErrorBody{
		Code:  string(code),
		Error: appErrors.MessageOf(err),
	})
}
