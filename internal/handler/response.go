package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
)

// WriteJSON writes payload as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case appErrors.IsInvalidTransition(err):
		return http.StatusConflict
	case errors.Is(err, appErrors.ErrInvalidInput):
		return http.StatusBadRequest
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// WriteServiceError writes err with the status StatusFor picks. Internal
// failures are answered with fallback so storage details stay in the logs.
func WriteServiceError(w http.ResponseWriter, err error, fallback string) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		WriteError(w, code, fallback)
		return
	}
	WriteError(w, code, err.Error())
}
