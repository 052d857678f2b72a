package api

import (
	"net/http"

	"avatarcast/db"
	"avatarcast/internal/app/scene"

	"github.com/go-chi/chi/v5"
)

type sceneAssetsResponse struct {
	Success     bool           `json:"success"`
	Backgrounds []scene.Asset  `json:"backgrounds"`
	Music       []scene.Asset  `json:"music"`
	Defaults    scene.Defaults `json:"defaults"`
}

func (api *API) sceneAssets(w http.ResponseWriter, r *http.Request) {
	bgs, err := api.scenes.Backgrounds()
	if err != nil {
		api.fail(w, r, err, "Failed to list scene assets")
		return
	}

	tracks, err := api.scenes.Music()
	if err != nil {
		api.fail(w, r, err, "Failed to list scene assets")
		return
	}

	defaults, err := api.scenes.Defaults()
	if err != nil {
		api.fail(w, r, err, "Failed to list scene assets")
		return
	}

	writeJSON(w, http.StatusOK, &sceneAssetsResponse{
		Success:     true,
		Backgrounds: bgs,
		Music:       tracks,
		Defaults:    defaults,
	})
}

func (api *API) sceneAssetFile(w http.ResponseWriter, r *http.Request) {
	kind := scene.Kind(chi.URLParam(r, "kind"))
	if kind != scene.KindBackground && kind != scene.KindMusic {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	path, err := api.scenes.Path(kind, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	serveFile(w, r, path)
}

type selectSceneRequest struct {
	RunID      string `json:"run_id"`
	Background string `json:"background"`
	Music      string `json:"music"`
}

type runResponse struct {
	Success bool    `json:"success"`
	Run     *db.Run `json:"run"`
}

func (api *API) selectScene(w http.ResponseWriter, r *http.Request) {
	var req selectSceneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	run, err := api.svc.SelectScene(r.Context(), req.RunID, req.Background, req.Music)
	if err != nil {
		api.fail(w, r, err, "Scene selection failed")
		return
	}

	writeJSON(w, http.StatusOK, &runResponse{Success: true, Run: run})
}
