package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/citizone/authserver/internal/services"
	"github.com/citizone/authserver/internal/storage"
	"github.com/go-chi/chi/v5"
)

const maxAvatarBytes = 5 << 20

// UserHandler exposes profile endpoints for authenticated users.
type UserHandler struct {
	userService *services.UserService
	avatars     *storage.Storage
}

func NewUserHandler(userService *services.UserService, avatars *storage.Storage) *UserHandler {
	return &UserHandler{userService: userService, avatars: avatars}
}

// UserRouter registers profile routes; the caller wraps them in auth
// middleware.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/profile", handler.GetProfile)
	r.Put("/profile", handler.UpdateProfile)
	r.Post("/avatar", handler.UploadAvatar)
	r.Get("/avatar", handler.GetAvatar)
}

// GetProfile returns the authenticated user's public fields.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", user)
}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
}

// UpdateProfile changes display fields only; credentials and role are not
// reachable from here.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, services.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
		Gender:    req.Gender,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "profile updated", user)
}

// UploadAvatar stores the request body as the user's avatar object.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.avatars == nil {
		writeFailure(w, http.StatusServiceUnavailable, "avatar storage not configured")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/jpeg" {
		writeFailure(w, http.StatusBadRequest, "avatar must be image/png or image/jpeg")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "avatar too large")
		return
	}
	if len(data) == 0 {
		writeFailure(w, http.StatusBadRequest, "avatar body is required")
		return
	}

	key := avatarKey(userID)
	if err := h.avatars.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	writeSuccess(w, http.StatusOK, "avatar uploaded", map[string]string{"key": key})
}

// GetAvatar streams the stored avatar object.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.avatars == nil {
		writeFailure(w, http.StatusServiceUnavailable, "avatar storage not configured")
		return
	}

	object, err := h.avatars.Get(r.Context(), avatarKey(userID))
	if err != nil {
		writeFailure(w, http.StatusNotFound, "avatar not found")
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, object)
}

func avatarKey(userID int64) string {
	return fmt.Sprintf("avatars/%d", userID)
}
