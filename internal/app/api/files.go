package api

import (
	"fmt"
	"net/http"

	"avatarcast/internal/app/workspace"

	"github.com/go-chi/chi/v5"
)

func serveFile(w http.ResponseWriter, r *http.Request, path string) {
	if !workspace.Exists(path) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	http.ServeFile(w, r, path)
}

// runFile serves audio and video artifacts of a run.
func (api *API) runFile(w http.ResponseWriter, r *http.Request) {
	path, err := api.svc.Workspace().RunFile(chi.URLParam(r, "run_id"), chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	serveFile(w, r, path)
}

func (api *API) download(w http.ResponseWriter, r *http.Request) {
	run, err := api.svc.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		api.fail(w, r, err, "Download failed")
		return
	}

	if run.VideoFile == "" {
		writeError(w, http.StatusNotFound, "Video not generated")
		return
	}

	path, err := api.svc.Workspace().RunFile(run.ID, run.VideoFile)
	if err != nil {
		api.fail(w, r, err, "Download failed")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="avatarcast_%s.mp4"`, run.ID))

	serveFile(w, r, path)
}
