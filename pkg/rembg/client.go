package rembg

import (
	"avatarcast/pkg/tools"

	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrNoAlpha = errors.New("cutout has no alpha channel")

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config points at a `rembg s` server.
type Config struct {
	URL          string `yaml:"url"`
	Model        string `yaml:"model"`
	AlphaMatting bool   `yaml:"alpha_matting"`
}

type Client struct {
	cfg        *Config
	httpClient HTTPClient
}

func New(httpClient HTTPClient, cfg *Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
	}
}

func (c *Client) model() string {
	if c.cfg.Model == "" {
		return "u2net"
	}
	return c.cfg.Model
}

// Remove sends the image to rembg and returns the PNG cutout.
func (c *Client) Remove(ctx context.Context, image []byte, filename string) ([]byte, error) {
	if c == nil || c.cfg == nil || strings.TrimSpace(c.cfg.URL) == "" {
		return nil, fmt.Errorf("rembg client is not configured")
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("no image provided")
	}

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/remove"

	q := u.Query()
	q.Set("model", c.model())
	q.Set("a", strconv.FormatBool(c.cfg.AlphaMatting))
	u.RawQuery = q.Encode()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("failed to call rembg server: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		metrics.Errors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("status code %d, err - %s", resp.StatusCode, strings.TrimSpace(string(respData)))
	}

	ok, err := HasAlpha(respData)
	if err != nil {
		metrics.Errors.WithLabelValues("invalid_png").Inc()
		return nil, fmt.Errorf("rembg returned invalid png: %w", err)
	}

	if !ok {
		metrics.Errors.WithLabelValues("no_alpha").Inc()
		return nil, ErrNoAlpha
	}

	metrics.QueryTime.Observe(time.Since(start).Seconds())

	return respData, nil
}
