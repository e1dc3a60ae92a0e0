// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/pkg/errutil"
)

var statusByKind = map[auth.Kind]int{
	auth.KindValidation:   http.StatusBadRequest,
	auth.KindConflict:     http.StatusConflict,
	auth.KindUnauthorized: http.StatusUnauthorized,
	auth.KindNotFound:     http.StatusNotFound,
	auth.KindInternal:     http.StatusInternalServerError,
}

var defaultMessage = map[auth.Kind]string{
	auth.KindValidation:   "Invalid request",
	auth.KindConflict:     "Conflict",
	auth.KindUnauthorized: "Unauthorized",
	auth.KindNotFound:     "Not Found",
	auth.KindInternal:     "Something went wrong",
}

// errorBody is the JSON error envelope. Code and Error are only set in
// development mode.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	return statusByKind[auth.KindOf(err)]
}

// writeError is the single place where error kinds become HTTP responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status := statusFor(err)

	body := errorBody{Message: defaultMessage[kind]}
	if kind != auth.KindInternal {
		if msg := auth.PublicMessage(err); msg != "" {
			body.Message = msg
		}
	}
	if h.development {
		body.Code = auth.CodeOf(err)
		body.Error = err.Error()
	}

	switch kind {
	case auth.KindInternal:
		errutil.LogError(r.Context(), h.logger, "request failed", err, "path", r.URL.Path)
	case auth.KindUnauthorized:
		if h.metrics != nil {
			h.metrics.AuthRejections.WithLabelValues(auth.CodeOf(err)).Inc()
		}
		h.logger.InfoContext(r.Context(), "request rejected",
			"path", r.URL.Path, "code", auth.CodeOf(err))
	default:
		h.logger.DebugContext(r.Context(), "request failed",
			"path", r.URL.Path, "kind", kind.String(), "code", auth.CodeOf(err))
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(v)
}
