package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"avatarcast/db"
	"avatarcast/internal/app/api"
	"avatarcast/internal/app/pipeline"
	"avatarcast/internal/app/scene"
	"avatarcast/internal/app/workspace"
	"avatarcast/internal/testutil"
	"avatarcast/pkg/ffmpeg"
	"avatarcast/pkg/sadtalker"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeTTS struct{}

func (fakeTTS) TTS(ctx context.Context, text string) ([]byte, error) {
	return testutil.SilentWav(16000, time.Second), nil
}

type fakeRemover struct{}

func (fakeRemover) Remove(ctx context.Context, image []byte, filename string) ([]byte, error) {
	return testutil.PNG(4, 4, true), nil
}

type fakeTalker struct{}

func (fakeTalker) Generate(ctx context.Context, req *sadtalker.Request) (string, error) {
	if err := os.MkdirAll(req.ResultDir, 0o755); err != nil {
		return "", err
	}

	out := filepath.Join(req.ResultDir, "result.mp4")
	return out, os.WriteFile(out, []byte("clip"), 0o644)
}

type fakeMedia struct{}

func (fakeMedia) ToWav(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	return os.WriteFile(outputPath, testutil.SilentWav(sampleRate, time.Second), 0o644)
}

func (fakeMedia) Silence(ctx context.Context, outputPath string, d time.Duration, sampleRate int) error {
	return os.WriteFile(outputPath, testutil.SilentWav(sampleRate, d), 0o644)
}

func (fakeMedia) FfprobePath(ctx context.Context, path string) (*ffmpeg.FfprobeResult, error) {
	return &ffmpeg.FfprobeResult{Duration: time.Second, HasVideo: true, HasAudio: true}, nil
}

func (fakeMedia) Compose(ctx context.Context, req *ffmpeg.ComposeRequest) error {
	return os.WriteFile(req.Output, []byte("final"), 0o644)
}

type blockingTalker struct{}

func (blockingTalker) Generate(ctx context.Context, req *sadtalker.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	return newServerWith(t, &api.Config{}, fakeTalker{})
}

func newServerWith(t *testing.T, cfg *api.Config, talker pipeline.Talker) *httptest.Server {
	t.Helper()

	dir := t.TempDir()

	store, err := db.New(context.Background(), &db.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ws := workspace.New(&workspace.Config{OutputDir: filepath.Join(dir, "output")})
	require.NoError(t, ws.Init())

	bg := filepath.Join(dir, "backgrounds")
	music := filepath.Join(dir, "music")
	require.NoError(t, os.MkdirAll(bg, 0o755))
	require.NoError(t, os.MkdirAll(music, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bg, "background1.png"), testutil.PNG(4, 4, false), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(music, "Fresh Focus.mp3"), []byte("mp3"), 0o644))

	scenes := scene.New(&scene.Config{BackgroundsDir: bg, MusicDir: music})

	svc := pipeline.NewService(&pipeline.Config{}, slog.Default(), ws, pipeline.Deps{
		TTS:     fakeTTS{},
		Remover: fakeRemover{},
		Talker:  talker,
		Media:   fakeMedia{},
		Scenes:  scenes,
		Store:   store,
	})

	srv := httptest.NewServer(api.NewAPI(cfg, slog.Default(), svc, scenes, prometheus.NewRegistry()).NewRouter())
	t.Cleanup(srv.Close)

	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)

	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func upload(t *testing.T, url, field, filename string, data []byte, extra map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)

	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)

	return resp, decode(t, resp)
}

func TestHealthz(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	assert.NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	assert.NoError(err)
	assert.Equal("ok", string(body))
}

func TestAvatarFlow(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	resp, out := upload(t, srv.URL+"/upload-avatar", "avatar", "me.jpg", testutil.PNG(16, 16, false), nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, out["success"])
	assert.Equal("/avatars/me.png", out["path"])

	file, err := http.Get(srv.URL + "/avatars/me.png")
	assert.NoError(err)
	file.Body.Close()
	assert.Equal(http.StatusOK, file.StatusCode)
	assert.Equal("image/png", file.Header.Get("Content-Type"))

	resp, out = postJSON(t, srv.URL+"/remove-background", map[string]string{"avatar": "/avatars/me.png"})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/avatars/me_nobg.png", out["path"])

	resp, out = upload(t, srv.URL+"/upload-avatar", "avatar", "bad.png", []byte("nope"), nil)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Equal("Invalid image", out["error"])

	resp, out = upload(t, srv.URL+"/upload-avatar", "file", "me.png", testutil.PNG(4, 4, false), nil)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Equal("No file provided", out["error"])
}

func TestGenerateAudio(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	resp, out := postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": ""})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Equal(false, out["success"])
	assert.Equal("No text provided", out["error"])

	resp, out = postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": "hello"})
	assert.Equal(http.StatusOK, resp.StatusCode)

	runID, _ := out["run_id"].(string)
	assert.NotEmpty(runID)
	assert.Equal("/audio/"+runID+"/speech.wav", out["url"])

	file, err := http.Get(srv.URL + out["url"].(string))
	assert.NoError(err)
	file.Body.Close()
	assert.Equal(http.StatusOK, file.StatusCode)

	resp, out = postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": "hi", "run_id": "missing"})
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	assert.Equal("Run not found", out["error"])
}

func TestUploadAudio(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	resp, out := upload(t, srv.URL+"/upload-audio", "audio", "voice.mp3", []byte("mp3"), nil)
	assert.Equal(http.StatusOK, resp.StatusCode)

	runID := out["run_id"].(string)

	resp, out = upload(t, srv.URL+"/upload-audio", "audio", "voice.mp3", []byte("mp3"), map[string]string{"run_id": runID})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(runID, out["run_id"])
}

func TestGenerateVideoAndDownload(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	resp, out := postJSON(t, srv.URL+"/generate-video", map[string]string{"avatar": "/avatars/me.png"})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Equal("Missing avatar or audio", out["error"])

	upload(t, srv.URL+"/upload-avatar", "avatar", "me.png", testutil.PNG(16, 16, false), nil)
	_, out = postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": "hello"})
	runID := out["run_id"].(string)

	resp, out = postJSON(t, srv.URL+"/scene", map[string]string{"run_id": runID, "background": "background1.png"})
	assert.Equal(http.StatusOK, resp.StatusCode)

	resp, out = postJSON(t, srv.URL+"/generate-video", map[string]any{"avatar": "/avatars/me.png", "run_id": runID, "still": false})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/video/"+runID+"/final.mp4", out["url"])
	assert.NotContains(out, "share_url")

	dl, err := http.Get(srv.URL + "/download/" + runID)
	assert.NoError(err)
	defer dl.Body.Close()

	body, err := io.ReadAll(dl.Body)
	assert.NoError(err)
	assert.Equal(http.StatusOK, dl.StatusCode)
	assert.Equal("final", string(body))
	assert.True(strings.HasPrefix(dl.Header.Get("Content-Disposition"), "attachment;"))

	resp, out = postJSON(t, srv.URL+"/scene", map[string]string{"run_id": runID, "music": "nope.mp3"})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Equal("Unknown scene asset", out["error"])
}

func TestFlowWithoutRunID(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	upload(t, srv.URL+"/upload-avatar", "avatar", "me.png", testutil.PNG(16, 16, false), nil)

	resp, out := upload(t, srv.URL+"/upload-audio", "audio", "voice.mp3", []byte("mp3"), nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	runID := out["run_id"].(string)

	resp, out = postJSON(t, srv.URL+"/scene", map[string]string{"background": "background1.png"})
	assert.Equal(http.StatusOK, resp.StatusCode)
	run := out["run"].(map[string]any)
	assert.Equal(runID, run["id"])
	assert.Equal("background1.png", run["background"])

	resp, out = postJSON(t, srv.URL+"/generate-video", map[string]any{"avatar": "/avatars/me.png"})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(runID, out["run_id"])
	assert.Equal("/video/"+runID+"/final.mp4", out["url"])

	dl, err := http.Get(srv.URL + "/download/" + runID)
	assert.NoError(err)
	defer dl.Body.Close()

	body, err := io.ReadAll(dl.Body)
	assert.NoError(err)
	assert.Equal(http.StatusOK, dl.StatusCode)
	assert.Equal("final", string(body))
}

func TestRequestTimeout(t *testing.T) {
	assert := require.New(t)
	srv := newServerWith(t, &api.Config{Timeout: 50 * time.Millisecond}, blockingTalker{})

	upload(t, srv.URL+"/upload-avatar", "avatar", "me.png", testutil.PNG(16, 16, false), nil)
	_, out := postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": "hello"})
	runID := out["run_id"].(string)

	resp, out := postJSON(t, srv.URL+"/generate-video", map[string]any{"avatar": "/avatars/me.png", "run_id": runID})
	assert.Equal(http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal("Request timed out", out["error"])

	resp, err := http.Get(srv.URL + "/runs/" + runID)
	assert.NoError(err)
	out = decode(t, resp)
	assert.Equal("failed", out["run"].(map[string]any)["status"])
}

func TestSceneAssets(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/scene-assets")
	assert.NoError(err)
	out := decode(t, resp)

	assert.Len(out["backgrounds"], 1)
	assert.Len(out["music"], 1)
	assert.Equal(map[string]any{"background": "background1.png", "music": "Fresh Focus.mp3"}, out["defaults"])

	file, err := http.Get(srv.URL + "/scene-assets/music/Fresh%20Focus.mp3")
	assert.NoError(err)
	file.Body.Close()
	assert.Equal(http.StatusOK, file.StatusCode)

	file, err = http.Get(srv.URL + "/scene-assets/secrets/passwd")
	assert.NoError(err)
	file.Body.Close()
	assert.Equal(http.StatusNotFound, file.StatusCode)
}

func TestRuns(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	_, out := postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": "hello"})
	runID := out["run_id"].(string)

	resp, err := http.Get(srv.URL + "/runs")
	assert.NoError(err)
	out = decode(t, resp)
	assert.Len(out["runs"], 1)

	resp, err = http.Get(srv.URL + "/runs/" + runID)
	assert.NoError(err)
	out = decode(t, resp)
	assert.Equal(string(db.RunStatusAudioReady), out["run"].(map[string]any)["status"])

	resp, err = http.Get(srv.URL + "/runs/00000000-0000-0000-0000-000000000000")
	assert.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/download/" + runID)
	assert.NoError(err)
	resp.Body.Close()
	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestRunEventsWS(t *testing.T) {
	assert := require.New(t)
	srv := newServer(t)

	_, out := postJSON(t, srv.URL+"/generate-audio", map[string]string{"text": "hello"})
	runID := out["run_id"].(string)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/runs/"+runID, nil)
	assert.NoError(err)
	defer conn.Close()

	assert.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	var snapshot pipeline.Event
	assert.NoError(conn.ReadJSON(&snapshot))
	assert.Equal("snapshot", snapshot.Step)
	assert.Equal(db.RunStatusAudioReady, snapshot.Status)

	postJSON(t, srv.URL+"/scene", map[string]string{"run_id": runID, "background": "background1.png"})

	var event pipeline.Event
	assert.NoError(conn.ReadJSON(&event))
	assert.Equal("scene", event.Step)
	assert.Equal(runID, event.RunID)
}
