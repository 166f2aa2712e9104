package api

import (
	"encoding/json"
	"net/http"

	"loofcloud/internal/models"
)

func (h *Handler) ConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.d.APPCFG.Get(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, cfg)
}

type appConfigPatch struct {
	Base *struct {
		StrmBaseURL          *string  `json:"strm_base_url"`
		UserRmtMediaext      []string `json:"user_rmt_mediaext"`
		UserDownloadMediaext []string `json:"user_download_mediaext"`
	} `json:"base"`
	Storage *struct {
		CloudStorageBoxDir   *string `json:"cloud_storage_box_dir"`
		LocalMediaLibraryDir *string `json:"local_media_library_dir"`
	} `json:"storage"`
}

// ConfigPatch — частичное обновление: переданные поля накатываются на
// текущее значение, остальное не трогается.
func (h *Handler) ConfigPatch(w http.ResponseWriter, r *http.Request) {
	var req appConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	cur, err := h.d.APPCFG.Get(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	if req.Base != nil {
		if req.Base.StrmBaseURL != nil {
			cur.Base.StrmBaseURL = req.Base.StrmBaseURL
		}
		if len(req.Base.UserRmtMediaext) > 0 {
			cur.Base.UserRmtMediaext = req.Base.UserRmtMediaext
		}
		if len(req.Base.UserDownloadMediaext) > 0 {
			cur.Base.UserDownloadMediaext = req.Base.UserDownloadMediaext
		}
	}
	if req.Storage != nil {
		if req.Storage.CloudStorageBoxDir != nil {
			cur.Storage.CloudStorageBoxDir = req.Storage.CloudStorageBoxDir
		}
		if req.Storage.LocalMediaLibraryDir != nil {
			cur.Storage.LocalMediaLibraryDir = req.Storage.LocalMediaLibraryDir
		}
	}
	if err := h.d.APPCFG.Set(r.Context(), cur); err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, cur)
}
