package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"loofcloud/internal/auth"
	"loofcloud/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "username and password required", nil)
		return
	}
	token, err := h.d.AUTH.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
