package admin

import (
	"net/http"
	"strconv"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/shared"
	"github.com/mandalnilabja/ocrway/internal/types"
)

// CreateKey issues a new credential (POST /api/admin/keys). The raw key is
// only ever returned here.
func (h *Handlers) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req types.CreateKeyRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	params := admission.CreateParams{
		Name:               req.Name,
		RateLimitPerMinute: h.DefaultPerMinute,
		RateLimitPerDay:    h.DefaultPerDay,
		IsActive:           true,
	}
	if req.RateLimitPerMinute != nil {
		params.RateLimitPerMinute = *req.RateLimitPerMinute
	}
	if req.RateLimitPerDay != nil {
		params.RateLimitPerDay = *req.RateLimitPerDay
	}
	if req.IsActive != nil {
		params.IsActive = *req.IsActive
	}

	cred, raw, err := h.Service.Create(r.Context(), params)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	preview := cred.ToPreview()
	preview.Key = raw

	h.Logger.Info("api key created", "id", cred.ID, "name", cred.Name)
	shared.WriteJSON(w, types.CreateKeyResponse{
		CredentialPreview: preview,
		Message:           "Store this key securely. It will not be shown again.",
	}, http.StatusCreated)
}

// ListKeys lists credentials with the key masked (GET /api/admin/keys).
func (h *Handlers) ListKeys(w http.ResponseWriter, r *http.Request) {
	creds, err := h.Service.List(r.Context())
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	previews := make([]*storage.CredentialPreview, 0, len(creds))
	for _, c := range creds {
		previews = append(previews, c.ToPreview())
	}
	shared.WriteJSON(w, previews, http.StatusOK)
}

// GetKeyStats returns recent usage for one credential (GET /api/admin/keys/{id}).
func (h *Handlers) GetKeyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	shared.WriteJSON(w, stats, http.StatusOK)
}

// DeleteKey removes a credential (DELETE /api/admin/keys/{id}).
func (h *Handlers) DeleteKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	h.Logger.Info("api key deleted", "id", id)
	shared.WriteJSON(w, map[string]string{"message": "API key deleted"}, http.StatusOK)
}

// ToggleKey activates or deactivates a credential
// (PATCH /api/admin/keys/{id}/toggle?is_active=bool).
func (h *Handlers) ToggleKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	active, err := strconv.ParseBool(r.URL.Query().Get("is_active"))
	if err != nil {
		types.WriteError(w, http.StatusBadRequest, types.NewAPIErrorWithParam(
			"is_active must be true or false", types.ErrorTypeInvalidRequest, "is_active"))
		return
	}

	if err := h.Service.SetActive(r.Context(), id, active); err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	h.Logger.Info("api key toggled", "id", id, "is_active", active)
	shared.WriteJSON(w, map[string]any{"message": "API key " + state, "id": id, "is_active": active}, http.StatusOK)
}

// Stats returns the global usage summary (GET /api/admin/stats).
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context())
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	shared.WriteJSON(w, summary, http.StatusOK)
}
