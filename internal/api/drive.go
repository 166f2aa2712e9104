package api

import (
	"net/http"
	"strconv"

	"loofcloud/internal/models"
)

const defaultQrcodeApp = "qandroid"

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.d.SESSION.DashboardInfo(r.Context()))
}

func (h *Handler) DriveStatus(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.d.SESSION.Status(r.Context()))
}

func qrcodeApp(r *http.Request) string {
	if app := r.URL.Query().Get("app"); app != "" {
		return app
	}
	return defaultQrcodeApp
}

// Ошибки провайдера в явных пользовательских действиях отдаём как 500 с
// текстом апстрима: пользователь должен видеть, что вход не удался.
func (h *Handler) QrcodeToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.d.SESSION.GetQrcodeToken(r.Context(), qrcodeApp(r))
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Upstream Error",
			"获取二维码 token 失败: "+err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, tok)
}

func (h *Handler) QrcodeImage(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "uid required", nil)
		return
	}
	img, err := h.d.SESSION.GetQrcodeImage(r.Context(), uid)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Upstream Error",
			"获取二维码图片失败: "+err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *Handler) QrcodePoll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid := q.Get("uid")
	sign := q.Get("sign")
	t, err := strconv.ParseInt(q.Get("time"), 10, 64)
	if uid == "" || sign == "" || err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "uid, time and sign required", nil)
		return
	}
	st, err := h.d.SESSION.PollQrcodeStatus(r.Context(), uid, t, sign)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Upstream Error",
			"轮询状态失败: "+err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, st)
}

type confirmResponse struct {
	OK         bool   `json:"ok"`
	CookiesStr string `json:"cookies_str"`
}

func (h *Handler) QrcodeConfirm(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "uid required", nil)
		return
	}
	credential, err := h.d.SESSION.ConfirmQrcode(r.Context(), uid, qrcodeApp(r))
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Upstream Error",
			"确认登入失败: "+err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, confirmResponse{OK: true, CookiesStr: credential})
}

func (h *Handler) DriveLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.d.SESSION.Logout(r.Context()); err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
