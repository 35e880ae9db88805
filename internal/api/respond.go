// Package api exposes the aggregation pipeline over an HTTP JSON API. The
// handlers are thin: they parse a request into a filter specification, call
// into charts/geodata/dashboard, and serialize the result.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/dashboard"
)

// requestError carries a client-facing message for a 4xx response. Anything
// else that reaches writeError is treated as internal: logged in full,
// reported to the caller as a generic 500.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return &requestError{status: http.StatusNotFound, msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if reqErr, ok := err.(*requestError); ok {
		writeJSON(w, reqErr.status, map[string]string{"error": reqErr.msg})
		return
	}
	if eris.Is(err, dashboard.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dashboard not found"})
		return
	}

	// Internal failures never leak detail to the response body.
	zap.L().Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.String("request_id", requestIDFrom(r)),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
