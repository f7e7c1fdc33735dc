package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/reconcile"
	"github.com/parcelfolio/parcelfolio/internal/store"
)

type apiHandler struct {
	env *appEnv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// userID extracts the acting user from the request. Authentication itself is
// handled upstream; this layer only scopes operations to the given user.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// writeReconcileError maps the reconciliation error taxonomy to HTTP status
// codes with messages distinguishing "already exists", "not found",
// "provider unavailable", and "invalid input".
func writeReconcileError(w http.ResponseWriter, err error) {
	var dup *reconcile.DuplicateError
	if errors.As(err, &dup) {
		writeError(w, http.StatusConflict, dup.Error())
		return
	}
	var notFound *reconcile.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	var ineligible *reconcile.RefreshIneligibleError
	if errors.As(err, &ineligible) {
		writeError(w, http.StatusUnprocessableEntity, ineligible.Error())
		return
	}
	var validation *reconcile.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error())
		return
	}
	var unavailable *reconcile.ProviderUnavailableError
	if errors.As(err, &unavailable) {
		writeError(w, http.StatusBadGateway, unavailable.Error())
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *apiHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) createProperty(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var in reconcile.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.env.Engine.Create(r.Context(), user, in)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *apiHandler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var req struct {
		Source string                  `json:"source"`
		Inputs []reconcile.CreateInput `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	result, err := h.env.Engine.BulkCreate(r.Context(), user, req.Source, req.Inputs)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) refreshProperty(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	updated, err := h.env.Engine.Refresh(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *apiHandler) checkDuplicate(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	match, err := h.env.Engine.CheckDuplicate(r.Context(), r.URL.Query().Get("apn"), user)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *apiHandler) getProperty(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	rec, err := h.env.Store.Get(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		zap.L().Error("get property", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *apiHandler) listProperties(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	q := r.URL.Query()
	f := store.Filter{
		City:   q.Get("city"),
		State:  q.Get("state"),
		Search: q.Get("search"),
	}
	if tags := q.Get("tags"); tags != "" {
		f.Tags = strings.Split(tags, ",")
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	records, err := h.env.Store.List(r.Context(), user, f)
	if err != nil {
		zap.L().Error("list properties", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []model.PropertyRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *apiHandler) deleteProperty(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	if err := h.env.Store.Delete(r.Context(), chi.URLParam(r, "id"), user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "property not found")
			return
		}
		zap.L().Error("delete property", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
