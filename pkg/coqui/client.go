package coqui

import (
	"avatarcast/pkg/tools"

	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

var ErrEmptyText = errors.New("text must not be empty")

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config points at a Coqui `tts-server` instance.
type Config struct {
	URL        string `yaml:"url"`
	SpeakerID  string `yaml:"speaker_id"`
	LanguageID string `yaml:"language_id"`
	StyleWav   string `yaml:"style_wav"`
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
		httpClient: httpClient,
		cfg:        cfg,
	}
}

func (c *Client) endpoint(text string) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/tts"

	q := u.Query()
	q.Set("text", text)
	q.Set("speaker_id", c.cfg.SpeakerID)
	q.Set("language_id", c.cfg.LanguageID)
	q.Set("style_wav", c.cfg.StyleWav)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// TTS synthesizes text and returns wav bytes.
func (c *Client) TTS(ctx context.Context, text string) ([]byte, error) {
	if c == nil || c.cfg == nil || strings.TrimSpace(c.cfg.URL) == "" {
		return nil, fmt.Errorf("coqui client is not configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	endpoint, err := c.endpoint(text)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TTSErrors.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("failed to call tts server: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		metrics.TTSErrors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("status code %d, err - %s", resp.StatusCode, strings.TrimSpace(string(respData)))
	}

	if _, err := Duration(respData); err != nil {
		metrics.TTSErrors.WithLabelValues("invalid_wav").Inc()
		return nil, fmt.Errorf("tts server returned invalid audio: %w", err)
	}

	metrics.TTSQueryTime.Observe(time.Since(start).Seconds())

	return respData, nil
}

// Duration validates wav data and returns its length.
func Duration(wavData []byte) (time.Duration, error) {
	d := wav.NewDecoder(bytes.NewReader(wavData))
	if !d.IsValidFile() {
		return 0, fmt.Errorf("not a valid wav file")
	}

	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to get wav duration: %w", err)
	}

	return dur, nil
}
