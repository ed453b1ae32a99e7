package weights

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/weightworks/weights-service/pkg/auth"
	werr "github.com/weightworks/weights-service/pkg/errors"
)

// maxRequestBodySize caps incoming JSON payloads.
const maxRequestBodySize = 1 << 20

// Handler serves the weight resource endpoints. Every endpoint requires a
// verified claim set in the request context; the handler fails closed if
// it is absent.
type Handler struct {
	repo *Repository
}

// NewHandler creates a Handler backed by the given repository.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Register attaches the weight routes to the given mux. The mux is
// expected to be wrapped by the auth middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/weights", h.List)
	mux.HandleFunc("POST /api/weights", h.Create)
	mux.HandleFunc("PUT /api/weights", h.Update)
	mux.HandleFunc("DELETE /api/weights/{id}", h.Delete)
}

// List returns all weight records owned by the caller.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authorize(w, r, auth.ReadWeights)
	if !ok {
		return
	}

	records, err := h.repo.FindAllByOwner(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, records)
}

// Create stores a new weight record for the caller and responds 201 with
// the new record's id as the body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authorize(w, r, auth.AddWeights)
	if !ok {
		return
	}

	save, err := h.decodePayload(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.repo.Insert(r.Context(), claims.Subject, save)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "%d", id)
}

// Update creates or replaces the record named by the payload's id and
// responds 204. The payload carries the full record including its owner;
// a payload owner that differs from the caller is refused with the same
// empty 401 as any other authorization failure, before storage is
// touched. The repository's upsert re-checks ownership against any
// stored record independently.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authorize(w, r, auth.AddWeights)
	if !ok {
		return
	}

	rec, err := h.decodeRecord(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if rec.UserID != claims.Subject {
		slog.InfoContext(r.Context(), "weights: upsert owner does not match caller",
			"subject", claims.Subject,
		)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.repo.Upsert(r.Context(), rec); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes the record at the given id if the caller owns it and
// responds 204. The response is identical whether the record existed,
// belonged to another owner, or was deleted, so the endpoint leaks
// nothing about other owners' data.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authorize(w, r, auth.DeleteWeights)
	if !ok {
		return
	}

	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.repo.Delete(r.Context(), claims.Subject, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize extracts the verified claims from the request context and
// checks the required permission. On failure it writes an empty 401 and
// returns false. A missing claim set means the request bypassed the
// gate; that is treated as unauthenticated, never as anonymous access.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, required auth.Permission) (*auth.ClaimSet, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		slog.WarnContext(r.Context(), "weights: request reached handler without verified claims",
			"path", r.URL.Path,
		)
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	if !claims.Permissions.Has(required) {
		slog.InfoContext(r.Context(), "weights: permission denied",
			"subject", claims.Subject,
			"required", string(required),
		)
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

// decodePayload reads and validates a SaveWeight payload from the
// request body.
func (h *Handler) decodePayload(r *http.Request) (SaveWeight, error) {
	var save SaveWeight
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&save); err != nil {
		return SaveWeight{}, werr.Wrap(err, werr.CodeValidation,
			"weights: invalid request body")
	}
	if err := save.Validate(); err != nil {
		return SaveWeight{}, err
	}
	return save, nil
}

// decodeRecord reads and validates a full WeightRecord upsert payload
// from the request body.
func (h *Handler) decodeRecord(r *http.Request) (WeightRecord, error) {
	var rec WeightRecord
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return WeightRecord{}, werr.Wrap(err, werr.CodeValidation,
			"weights: invalid request body")
	}
	if err := rec.Validate(); err != nil {
		return WeightRecord{}, err
	}
	return rec, nil
}

// parseID extracts the record id path parameter.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, werr.Wrap(err, werr.CodeValidation,
			"weights: invalid record id")
	}
	return id, nil
}

// writeJSON encodes v as the response body with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "weights: failed to encode response",
			"error", err,
		)
	}
}

// writeError maps an error to its HTTP response. AUTH and AUTHZ failures
// produce an empty 401; validation failures a 400 with a message; the
// rest a 5xx with a generic body so internals never leak to clients.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := werr.AsError(err); ok {
		status = appErr.HTTPStatus()
	}

	switch {
	case status == http.StatusUnauthorized:
		slog.InfoContext(r.Context(), "weights: request not authorized",
			"error", err,
			"path", r.URL.Path,
		)
		w.WriteHeader(http.StatusUnauthorized)
	case status >= 500:
		slog.ErrorContext(r.Context(), "weights: request failed",
			"error", err,
			"path", r.URL.Path,
		)
		h.writeJSON(w, r, status, map[string]string{"error": http.StatusText(status)})
	default:
		message := http.StatusText(status)
		if appErr, ok := werr.AsError(err); ok {
			message = appErr.Message
		}
		h.writeJSON(w, r, status, map[string]string{"error": message})
	}
}
