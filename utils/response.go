package utils

import (
	"encoding/json"
	"net/http"

	"rescuehub/errs"
)

// APIResponse is the envelope every endpoint writes. Code carries the error
// kind on failures so clients can tell conflicts apart.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.Permission:
		return http.StatusForbidden
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Duplicate, errs.State, errs.Capacity:
		return http.StatusConflict
	case errs.Network:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a failed envelope. Internal errors never leak
// their cause.
func WriteError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	msg := errs.Message(err)
	if kind == errs.Internal {
		msg = "Internal server error"
	}
	WriteJSON(w, StatusFor(kind), APIResponse{Success: false, Message: msg, Code: string(kind)})
}

// GetStringValue returns the value of a nullable string pointer or empty string if nil
func GetStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
