package api

import (
	"net/http"
	"strconv"
	"time"

	"avatarcast/db"
	"avatarcast/internal/app/pipeline"
	"avatarcast/pkg/ws"

	"github.com/go-chi/chi/v5"
)

type runsResponse struct {
	Success bool      `json:"success"`
	Runs    []*db.Run `json:"runs"`
}

func (api *API) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := api.svc.ListRuns(r.Context(), limit)
	if err != nil {
		api.fail(w, r, err, "Failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, &runsResponse{Success: true, Runs: runs})
}

func (api *API) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := api.svc.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		api.fail(w, r, err, "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, &runResponse{Success: true, Run: run})
}

// runEventsWS streams the run's current state followed by every status change.
func (api *API) runEventsWS(w http.ResponseWriter, r *http.Request) {
	run, err := api.svc.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		api.fail(w, r, err, "Failed to get run")
		return
	}

	logger := api.logger.With("run_id", run.ID)

	wsConn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade to websocket connection", "err", err)
		return
	}

	wsClient, done := ws.NewWsClient(wsConn)

	defer func() {
		logger.Debug("closing websocket connection")
		wsClient.Close()
	}()

	go wsClient.DrainRead()

	events := make(chan pipeline.Event, 16)

	unsubscribe := api.svc.Subscribe(run.ID, func(e pipeline.Event) {
		select {
		case events <- e:
		default:
			logger.Warn("dropping run event, websocket client is slow", "status", e.Status)
		}
	})
	defer unsubscribe()

	if err := wsClient.SendJSON(&pipeline.Event{
		RunID:  run.ID,
		Status: run.Status,
		Step:   "snapshot",
		Error:  run.Error,
		At:     run.UpdatedAt,
	}); err != nil {
		logger.Error("failed to send run snapshot", "err", err)
		return
	}

	t := time.NewTicker(30 * time.Second)
	defer t.Stop()

	for {
		select {
		case e := <-events:
			if err := wsClient.SendJSON(&e); err != nil {
				logger.Error("failed to send run event", "err", err)
				return
			}
		case <-t.C:
			if err := wsClient.SendJSON(map[string]string{"type": "ping"}); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
