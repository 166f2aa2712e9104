package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"loofcloud/config"
	"loofcloud/internal/auth"
	"loofcloud/internal/provider"
	"loofcloud/internal/repo"
)

type Dependencies struct {
	AUTH    *auth.Service
	SESSION *provider.Session
	APPCFG  *repo.AppConfigStore
	CFG     *config.Config
}

type Handler struct {
	d Dependencies
}

// Attach вешает API v1 на роутер. Порядок регистрации важен:
// /users/me должен матчиться раньше /users/{id}.
func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d}
	api := r.PathPrefix("/api/v1").Subrouter()

	// публичное
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	// любой аутентифицированный пользователь
	priv := api.NewRoute().Subrouter()
	priv.Use(auth.RequireAuth(d.AUTH))
	priv.HandleFunc("/users/me", h.Me).Methods(http.MethodGet)
	priv.HandleFunc("/users/me", h.UpdateMe).Methods(http.MethodPut)

	// только админ
	adm := api.NewRoute().Subrouter()
	adm.Use(auth.RequireAuth(d.AUTH), auth.RequireAdmin(d.AUTH))
	adm.HandleFunc("/users", h.UsersList).Methods(http.MethodGet)
	adm.HandleFunc("/users", h.UserCreate).Methods(http.MethodPost)
	adm.HandleFunc("/users/{id}", h.UserUpdate).Methods(http.MethodPatch)

	adm.HandleFunc("/config", h.ConfigGet).Methods(http.MethodGet)
	adm.HandleFunc("/config", h.ConfigPatch).Methods(http.MethodPatch)

	adm.HandleFunc("/p115/dashboard", h.Dashboard).Methods(http.MethodGet)
	adm.HandleFunc("/p115/status", h.DriveStatus).Methods(http.MethodGet)
	adm.HandleFunc("/p115/qrcode/token", h.QrcodeToken).Methods(http.MethodPost)
	adm.HandleFunc("/p115/qrcode/image", h.QrcodeImage).Methods(http.MethodGet)
	adm.HandleFunc("/p115/qrcode/poll", h.QrcodePoll).Methods(http.MethodGet)
	adm.HandleFunc("/p115/qrcode/confirm", h.QrcodeConfirm).Methods(http.MethodPost)
	adm.HandleFunc("/p115/logout", h.DriveLogout).Methods(http.MethodPost)
}
