// internal/httpx/httpx.go
//
// JSON request and response helpers shared by API components.
//
// Context
// -------
// Every API error leaves the process in one shape:
//
//	{"error": {"kind": "NOT_FOUND", "message": "Page not found."}}
//
// The HTTP status comes from the error's Kind; the message is the kind's
// stable user text unless the error carries a more specific one.  Internal
// causes are logged, never written to the client.
//
// Notes
// -----
//   - Request bodies are capped at MaxBody and decoded strictly; malformed
//     JSON is a VALIDATION error.
//   - Oxford commas, two spaces after periods.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// MaxBody bounds JSON request bodies.
const MaxBody = 1 << 20

// ErrorBody is the wire shape of an API error.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("json response write failed", zap.Error(err))
	}
}

// Error writes err as an API error.  SERVER and UNKNOWN kinds are logged at
// error level with the request id; others at debug.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
	if status >= 500 {
		zap.L().Error("api error", fields...)
	} else {
		zap.L().Debug("api error", fields...)
	}

	JSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: apperr.UserMessage(err)}})
}

// Decode reads a JSON body into v.  Unknown fields are rejected.
func Decode(r *http.Request, v any) error {
	const op = "httpx.Decode"
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return apperr.New(apperr.KindValidation, op, "Request body must be JSON.")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.KindValidation, op, "Request body is empty.")
		}
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "Request body is not valid JSON.", Err: err}
	}
	return nil
}

// DecodeMap reads a JSON object body as a generic map.  Numbers decode as
// float64.
func DecodeMap(r *http.Request) (map[string]any, error) {
	var m map[string]any
	if err := Decode(r, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.New(apperr.KindValidation, "httpx.DecodeMap", "Request body must be a JSON object.")
	}
	return m, nil
}
