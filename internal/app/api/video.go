package api

import (
	"net/http"

	"avatarcast/internal/app/pipeline"
)

type generateVideoRequest struct {
	Avatar      string  `json:"avatar"`
	RunID       string  `json:"run_id"`
	Mode        string  `json:"mode"`
	Still       *bool   `json:"still"`
	Enhancer    bool    `json:"enhancer"`
	Size        int     `json:"size"`
	PoseStyle   int     `json:"pose_style"`
	BatchSize   int     `json:"batch_size"`
	IdleSeconds float64 `json:"idle_seconds"`
	Background  string  `json:"background"`
	Music       string  `json:"music"`
}

type videoResponse struct {
	Success  bool   `json:"success"`
	RunID    string `json:"run_id"`
	URL      string `json:"url"`
	ShareURL string `json:"share_url,omitempty"`
}

func (api *API) generateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing avatar or audio")
		return
	}

	run, err := api.svc.GenerateVideo(r.Context(), &pipeline.VideoRequest{
		RunID:       req.RunID,
		Avatar:      req.Avatar,
		Preprocess:  req.Mode,
		Still:       req.Still,
		Enhancer:    req.Enhancer,
		Size:        req.Size,
		PoseStyle:   req.PoseStyle,
		BatchSize:   req.BatchSize,
		IdleSeconds: req.IdleSeconds,
		Background:  req.Background,
		Music:       req.Music,
	})
	if err != nil {
		api.fail(w, r, err, "Video generation failed")
		return
	}

	writeJSON(w, http.StatusOK, &videoResponse{
		Success:  true,
		RunID:    run.ID,
		URL:      "/video/" + run.ID + "/" + run.VideoFile,
		ShareURL: run.ShareURL,
	})
}
