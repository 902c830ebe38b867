package errors

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

// ErrorDetails describes the failure. Context carries the store path or
// run id the request addressed.
type ErrorDetails struct {
	Type    ErrorType         `json:"type"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// ErrorHandler turns errors into JSON responses.
type ErrorHandler struct {
	logger *logrus.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError writes err with the status of its type. Errors that are not
// AppErrors are reported as internal errors without leaking their text.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}
	status := StatusCode(appErr.Type)
	traceID := r.Header.Get("X-Request-ID")
	reqCtx := requestContext(r)

	entry := h.logger.WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"status":     status,
		"trace_id":   traceID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
	for k, v := range reqCtx {
		entry = entry.WithField(k, v)
	}
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error(appErr.Message)
	} else {
		entry.Warn(appErr.Message)
	}

	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Context: reqCtx,
		},
		TraceID: traceID,
	})
}

// requestContext picks the blob store path and run id out of the matched
// route, if any.
func requestContext(r *http.Request) map[string]string {
	vars := mux.Vars(r)
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, 2)
	if p, ok := vars["path"]; ok {
		out["level_path"] = p
	}
	if id, ok := vars["id"]; ok {
		out["run_id"] = id
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// HandleNotFound handles unmatched routes.
func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

// HandleMethodNotAllowed handles routes matched with the wrong method.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(ErrorTypeMethod, "Method "+r.Method+" not allowed"))
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// Middleware recovers handler panics into 500 responses.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.logger.WithFields(logrus.Fields{
					"panic":    recovered,
					"method":   r.Method,
					"path":     r.URL.Path,
					"trace_id": r.Header.Get("X-Request-ID"),
				}).Error("Panic recovered in HTTP handler")
				h.HandleError(w, r, NewInternalError("An unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
