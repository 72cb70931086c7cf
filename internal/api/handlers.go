// Package api serves a read-mostly HTTP view of a repository context:
// registered repositories, their parsed methods, and calls by name.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/repository"
	"github.com/leafsii/repokit/pkg/storage"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	rc     *repository.Context
	pinger Pinger
	logger *zap.SugaredLogger
}

// NewHandler serves rc. pinger may be nil when readiness only depends on
// the context being open.
func NewHandler(rc *repository.Context, pinger Pinger, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{rc: rc, pinger: pinger, logger: logger}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.rc.Closed() {
		h.writeError(w, http.StatusServiceUnavailable, "context_closed", "repository context is closed")
		return
	}
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// ParseMethod compiles every ?method= value.
func (h *Handler) ParseMethod(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["method"]
	if len(names) == 0 {
		h.writeError(w, http.StatusBadRequest, "missing_method", "query parameter method is required")
		return
	}

	out := make([]*ParsedMethodDTO, 0, len(names))
	for _, name := range names {
		parsed, err := query.Parse(name)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "parse_error", err.Error())
			return
		}
		out = append(out, newParsedMethodDTO(parsed))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	registered := h.rc.Registered()
	out := make([]RepositoryDTO, 0, len(registered))
	for _, meta := range registered {
		out = append(out, newRepositoryDTO(meta))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.lookup(chi.URLParam(r, "name"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown_repository", "no repository named "+chi.URLParam(r, "name"))
		return
	}
	h.writeJSON(w, http.StatusOK, newRepositoryDTO(meta))
}

// InvokeMethod calls a repository method by name with JSON arguments,
// converted to the method's parameter types first.
func (h *Handler) InvokeMethod(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	meta, ok := h.lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown_repository", "no repository named "+name)
		return
	}

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Method == "" {
		h.writeError(w, http.StatusBadRequest, "missing_method", "method is required")
		return
	}

	inst, err := h.rc.Repository(meta.RepositoryType)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "repository_unavailable", err.Error())
		return
	}
	d, ok := repository.DispatcherOf(inst)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "not_dispatchable", meta.Name()+" was not created by a proxy factory")
		return
	}

	args, err := coerceArgs(meta, req.Method, req.Args)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_arguments", err.Error())
		return
	}
	result, err := d.Invoke(r.Context(), req.Method, args...)
	if err != nil {
		h.writeError(w, statusFor(err), "invocation_failed", err.Error())
		return
	}
	if _, isMeta := result.(*repository.Metadata); isMeta {
		result = newRepositoryDTO(meta)
	}
	h.writeJSON(w, http.StatusOK, InvokeResponse{Repository: meta.Name(), Method: req.Method, Result: result})
}

// coerceArgs converts decoded JSON arguments to the parameter types of
// the method. Entity arguments arrive as objects. A count mismatch is
// left for the dispatcher to report.
func coerceArgs(meta *repository.Metadata, method string, args []interface{}) ([]interface{}, error) {
	types, ok := meta.ParameterTypes(method)
	if !ok || len(types) != len(args) {
		return args, nil
	}
	out := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := metadata.Coerce(arg, types[i])
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d of %s: %v", storage.ErrInvalidArgument, i, method, err)
		}
		out[i] = v.Interface()
	}
	return out, nil
}

func (h *Handler) lookup(name string) (*repository.Metadata, bool) {
	for _, meta := range h.rc.Registered() {
		if strings.EqualFold(meta.Name(), name) {
			return meta, true
		}
	}
	return nil, false
}

func statusFor(err error) int {
	var unsupported *repository.UnsupportedOperationError
	var identifier *metadata.IdentifierError
	var metaErr *metadata.MetadataError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUniqueConstraint):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalidArgument), errors.Is(err, storage.ErrUnknownField),
		errors.As(err, &identifier), errors.As(err, &metaErr):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrContextClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Warnw("API error", "code", code, "message", message, "status", status)
	h.writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
