package api

import (
	"net/http"

	"avatarcast/db"
)

type audioResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`
	URL     string `json:"url"`
}

func audioURL(run *db.Run) string {
	return "/audio/" + run.ID + "/" + run.AudioFile
}

type generateAudioRequest struct {
	Text  string `json:"text"`
	RunID string `json:"run_id"`
}

func (api *API) generateAudio(w http.ResponseWriter, r *http.Request) {
	var req generateAudioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	run, err := api.svc.GenerateAudio(r.Context(), req.RunID, req.Text)
	if err != nil {
		api.fail(w, r, err, "Audio generation failed")
		return
	}

	writeJSON(w, http.StatusOK, &audioResponse{Success: true, RunID: run.ID, URL: audioURL(run)})
}

func (api *API) uploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.maxUploadSize())

	if err := r.ParseMultipartForm(api.maxUploadSize()); err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	run, err := api.svc.UploadAudio(r.Context(), r.FormValue("run_id"), header.Filename, file)
	if err != nil {
		api.fail(w, r, err, "Audio upload failed")
		return
	}

	writeJSON(w, http.StatusOK, &audioResponse{Success: true, RunID: run.ID, URL: audioURL(run)})
}
