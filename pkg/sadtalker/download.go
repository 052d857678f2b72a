package sadtalker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"avatarcast/pkg/tools"
)

const DefaultCheckpointsURL = "https://huggingface.co/vinthony/SadTalker/resolve/main/checkpoints"

// CheckpointFiles are the mapping and face render weights fetched by the downloader.
var CheckpointFiles = []string{
	mappingFull,
	mappingCrop,
	"facevid2vid_00189-model.pth.tar",
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader fetches checkpoint files into a directory, skipping files that are already present.
type Downloader struct {
	httpClient HTTPClient
	baseURL    string
	dir        string

	// Progress wraps the destination of each download; nil disables progress reporting.
	Progress func(name string, size int64) io.Writer
}

func NewDownloader(httpClient HTTPClient, baseURL, dir string) *Downloader {
	if baseURL == "" {
		baseURL = DefaultCheckpointsURL
	}

	return &Downloader{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		dir:        dir,
	}
}

// Download fetches every missing file and returns the names that were downloaded.
func (d *Downloader) Download(ctx context.Context, files []string) ([]string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	var fetched []string
	for _, name := range files {
		dst := filepath.Join(d.dir, name)
		if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
			continue
		}

		if err := d.fetch(ctx, name, dst); err != nil {
			return fetched, err
		}

		fetched = append(fetched, name)
	}

	return fetched, nil
}

func (d *Downloader) fetch(ctx context.Context, name, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/"+name, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer tools.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.dir, name+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	if d.Progress != nil {
		w = io.MultiWriter(tmp, d.Progress(name, resp.ContentLength))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("move %s into place: %w", name, err)
	}

	return nil
}
