package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type pathResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

func (api *API) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.maxUploadSize())

	if err := r.ParseMultipartForm(api.maxUploadSize()); err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	name, err := api.svc.UploadAvatar(r.Context(), header.Filename, file)
	if err != nil {
		api.fail(w, r, err, "Avatar upload failed")
		return
	}

	writeJSON(w, http.StatusOK, &pathResponse{Success: true, Path: "/avatars/" + name})
}

func (api *API) avatarFile(w http.ResponseWriter, r *http.Request) {
	serveFile(w, r, api.svc.Workspace().AvatarPath(chi.URLParam(r, "filename")))
}

type removeBackgroundRequest struct {
	Avatar string `json:"avatar"`
}

func (api *API) removeBackground(w http.ResponseWriter, r *http.Request) {
	var req removeBackgroundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name, err := api.svc.RemoveBackground(r.Context(), req.Avatar)
	if err != nil {
		api.fail(w, r, err, "Background removal failed")
		return
	}

	writeJSON(w, http.StatusOK, &pathResponse{Success: true, Path: "/avatars/" + name})
}
