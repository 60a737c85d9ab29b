package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/shared"
	"github.com/mandalnilabja/ocrway/internal/types"
)

// Login exchanges admin credentials for a bearer token (POST /api/admin/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	if !h.checkCredentials(r, req.Username, req.Password) {
		types.WriteError(w, http.StatusUnauthorized, types.Unauthenticated("Invalid username or password"))
		return
	}

	token, _, err := h.Issuer.Issue(req.Username)
	if err != nil {
		h.Logger.Error("issuing admin token failed", "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ServerError("failed to issue token"))
		return
	}

	shared.WriteJSON(w, types.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.Issuer.TTL().Seconds()),
	}, http.StatusOK)
}

func (h *Handlers) checkCredentials(r *http.Request, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.Username)) == 1

	hash, err := h.Storage.GetAdminPasswordHash(r.Context())
	if err != nil || hash == "" {
		h.Logger.Warn("admin password hash unavailable", "error", err)
		return false
	}
	valid, err := storage.VerifyPassword(password, hash)
	return userOK && err == nil && valid
}

// ChangePassword changes the admin password (PUT /api/admin/password).
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req types.ChangePasswordRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	hash, err := h.Storage.GetAdminPasswordHash(r.Context())
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	if valid, err := storage.VerifyPassword(req.CurrentPassword, hash); err != nil || !valid {
		types.WriteError(w, http.StatusUnauthorized, types.Unauthenticated("current password is incorrect"))
		return
	}

	if !shared.IsValidAdminPassword(req.NewPassword) {
		types.WriteError(w, http.StatusBadRequest,
			types.InvalidRequest("password must be alphanumeric with at least 8 characters"))
		return
	}

	newHash, err := storage.HashPassword(req.NewPassword, storage.DefaultPasswordParams())
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	if err := h.Storage.SetAdminPasswordHash(r.Context(), newHash); err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	h.Logger.Info("admin password changed")
	shared.WriteJSON(w, map[string]string{"message": "password updated"}, http.StatusOK)
}
