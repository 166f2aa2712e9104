package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"loofcloud/internal/auth"
	"loofcloud/internal/models"
)

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, auth.UserFrom(r))
}

type selfUpdateRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// UpdateMe — пользователь меняет себе имя и/или пароль.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req selfUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	if req.Username == nil && req.Password == nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "nothing to update", nil)
		return
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "username must not be empty", nil)
		return
	}
	u, err := h.d.AUTH.UpdateSelf(r.Context(), auth.UserFrom(r), req.Username, req.Password)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) UsersList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.d.AUTH.ListUsers(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, rows)
}

type userCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) UserCreate(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "username and password required", nil)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	u, err := h.d.AUTH.CreateUser(r.Context(), req.Username, req.Password, req.Role, active)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, u)
}

type userUpdateRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) UserUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req userUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "username must not be empty", nil)
		return
	}
	u, err := h.d.AUTH.UpdateUser(r.Context(), id, auth.UpdateInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), nil)
	case errors.Is(err, auth.ErrUsernameTaken):
		models.WriteProblem(w, http.StatusBadRequest, "Conflict", err.Error(), nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	}
}
