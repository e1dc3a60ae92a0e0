// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the account operations over HTTP/JSON.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/validate"
)

// Prefix is the path prefix of every account route.
const Prefix = "/api/auth"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Accounts is the account operation surface used by the handlers.
// *auth.Service implements it.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Account, string, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Account, string, error)
	Authenticate(ctx context.Context, token string) (*auth.Caller, error)
	Update(ctx context.Context, caller *auth.Caller, in auth.UpdateInput) (*auth.Account, error)
	Delete(ctx context.Context, caller *auth.Caller) error
	GetSelf(ctx context.Context, caller *auth.Caller) (*auth.Account, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*auth.Account, error)
	GetByIdentityNumber(ctx context.Context, identityNumber string) (*auth.Account, error)
}

// Handler serves the account API.
type Handler struct {
	accounts       Accounts
	validator      *validate.Validator
	logger         *slog.Logger
	metrics        *observability.Metrics
	development    bool
	requestTimeout time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics records request and auth metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithDevelopment adds the error code and internal detail to error bodies.
func WithDevelopment(dev bool) Option {
	return func(h *Handler) { h.development = dev }
}

// WithRequestTimeout bounds each request with a context deadline.
// Zero disables the deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.requestTimeout = d }
}

// New creates a Handler.
func New(accounts Accounts, validator *validate.Validator, opts ...Option) (*Handler, error) {
	if accounts == nil {
		return nil, oops.Errorf("account service is required")
	}
	if validator == nil {
		return nil, oops.Errorf("validator is required")
	}

	h := &Handler{
		accounts:       accounts,
		validator:      validator,
		logger:         slog.Default(),
		requestTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		return nil, oops.Errorf("logger cannot be nil")
	}
	return h, nil
}

// Routes returns the API wrapped in the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+Prefix+"/register", h.handleRegister)
	mux.HandleFunc("POST "+Prefix+"/login", h.handleLogin)
	mux.Handle("POST "+Prefix+"/update", h.gate(h.handleUpdate))
	mux.Handle("POST "+Prefix+"/delete", h.gate(h.handleDelete))
	mux.Handle("GET "+Prefix+"/getMe", h.gate(h.handleGetMe))
	mux.Handle("GET "+Prefix+"/getByAccountNumber", h.gate(h.handleGetByAccountNumber))
	mux.Handle("GET "+Prefix+"/getByIdentityNumber", h.gate(h.handleGetByIdentityNumber))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Not Found"})
	})

	var handler http.Handler = recordRoute(mux)
	handler = h.withTimeout(handler)
	handler = h.recoverPanics(handler)
	handler = h.observe(handler)
	return handler
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := h.decode(r, validate.Register, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, token, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Registrations.Inc()
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  account,
		"token": token,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := h.decode(r, validate.Login, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, token, err := h.accounts.Login(r.Context(), in)
	h.recordLogin(err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"user":  account.Summary(),
			"token": token,
		},
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, caller *auth.Caller) {
	var in auth.UpdateInput
	if err := h.decode(r, validate.Update, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.accounts.Update(r.Context(), caller, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": account.Summary()})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, caller *auth.Caller) {
	if err := h.accounts.Delete(r.Context(), caller); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMe(w http.ResponseWriter, r *http.Request, caller *auth.Caller) {
	account, err := h.accounts.GetSelf(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": account.Profile()})
}

func (h *Handler) handleGetByAccountNumber(w http.ResponseWriter, r *http.Request, _ *auth.Caller) {
	value, err := h.queryParam(r, validate.AccountNumberQuery, "accountNumber")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeFound(w, r, func(ctx context.Context) (*auth.Account, error) {
		return h.accounts.GetByAccountNumber(ctx, value)
	})
}

func (h *Handler) handleGetByIdentityNumber(w http.ResponseWriter, r *http.Request, _ *auth.Caller) {
	value, err := h.queryParam(r, validate.IdentityNumberQuery, "identityNumber")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeFound(w, r, func(ctx context.Context) (*auth.Account, error) {
		return h.accounts.GetByIdentityNumber(ctx, value)
	})
}

func (h *Handler) writeFound(w http.ResponseWriter, r *http.Request, find func(context.Context) (*auth.Account, error)) {
	account, err := find(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User found!",
		"user":    account.Profile(),
	})
}

func (h *Handler) decode(r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return oops.Code(auth.CodeValidation).Public("Invalid JSON body").Wrap(err)
	}
	if len(body) > maxBodyBytes {
		return oops.Code(auth.CodeValidation).
			Public("Request body too large").
			Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return h.validator.DecodeJSON(schema, body, dst)
}

// queryParam validates a single lookup parameter. Absent parameters are
// reported as missing rather than empty.
func (h *Handler) queryParam(r *http.Request, schema, name string) (string, error) {
	instance := map[string]any{}
	values := r.URL.Query()
	if values.Has(name) {
		instance[name] = values.Get(name)
	}
	if err := h.validator.Validate(schema, instance); err != nil {
		return "", err
	}
	return values.Get(name), nil
}

func (h *Handler) recordLogin(err error) {
	if h.metrics == nil {
		return
	}
	result := "success"
	switch auth.KindOf(err) {
	case auth.KindInternal:
		if err != nil {
			result = "error"
		}
	case auth.KindUnauthorized:
		result = "invalid_credentials"
	case auth.KindNotFound:
		result = "unknown_user"
	default:
		result = "invalid_request"
	}
	h.metrics.Logins.WithLabelValues(result).Inc()
}
