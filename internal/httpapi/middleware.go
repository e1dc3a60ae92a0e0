// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/accountd/internal/auth"
)

var tracer = otel.Tracer("accountd/httpapi")

// unmatchedRoute labels requests that matched no API route.
const unmatchedRoute = "unmatched"

type callerHandler func(w http.ResponseWriter, r *http.Request, caller *auth.Caller)

// gate authenticates the bearer token and passes the resolved caller on.
func (h *Handler) gate(next callerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		caller, err := h.accounts.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("account.id", caller.Account.ID))
		next(w, r.WithContext(auth.WithCaller(r.Context(), caller)), caller)
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", oops.Code(auth.CodeMissingToken).
			Public("Unauthorized").
			Errorf("missing bearer token")
	}
	return token, nil
}

func (h *Handler) withTimeout(next http.Handler) http.Handler {
	if h.requestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type routeKey struct{}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	//nolint:wrapcheck // ResponseWriter passthrough
	return s.ResponseWriter.Write(b)
}

// observe wraps a request in a span, logs it and records request metrics.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request.method", r.Method)))
		defer span.End()

		route := new(string)
		ctx = context.WithValue(ctx, routeKey{}, route)
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r.WithContext(ctx))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		label := *route
		if label == "" || label == "/" {
			label = unmatchedRoute
		}

		span.SetName(label)
		span.SetAttributes(
			attribute.String("http.route", label),
			attribute.Int("http.response.status_code", rec.status),
		)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		elapsed := time.Since(start)
		if h.metrics != nil {
			h.metrics.HTTPRequests.WithLabelValues(label, strconv.Itoa(rec.status)).Inc()
			h.metrics.RequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())
		}
		h.logger.InfoContext(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", label,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds())
	})
}

// recordRoute stores the matched mux pattern for observe. It must wrap the
// mux directly, since the mux sets Pattern on the request it is handed.
func recordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if route, ok := r.Context().Value(routeKey{}).(*string); ok {
			*route = r.Pattern
		}
	})
}

func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := oops.Code("HTTP_HANDLER_PANIC").
			With("method", r.Method).
			With("path", r.URL.Path).
			Recover(func() {
				next.ServeHTTP(w, r)
			})
		if err != nil {
			h.writeError(w, r, err)
		}
	})
}
