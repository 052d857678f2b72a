package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrUnknownAsset = errors.New("unknown scene asset")

type Config struct {
	BackgroundsDir string `yaml:"backgrounds_dir"`
	MusicDir       string `yaml:"music_dir"`
}

type Kind string

const (
	KindBackground Kind = "backgrounds"
	KindMusic      Kind = "music"
)

type Asset struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

type Defaults struct {
	Background string `json:"background,omitempty"`
	Music      string `json:"music,omitempty"`
}

var extensions = map[Kind]map[string]struct{}{
	KindBackground: {".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {}},
	KindMusic:      {".mp3": {}, ".wav": {}, ".ogg": {}, ".m4a": {}},
}

// Catalog lists the backgrounds and music tracks a scene can be built from. The directories are read
// on every call so assets can be dropped in without a restart.
type Catalog struct {
	dirs map[Kind]string
}

func New(cfg *Config) *Catalog {
	return &Catalog{
		dirs: map[Kind]string{
			KindBackground: cfg.BackgroundsDir,
			KindMusic:      cfg.MusicDir,
		},
	}
}

func (c *Catalog) list(kind Kind) ([]Asset, error) {
	dir := c.dirs[kind]
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s dir: %w", kind, err)
	}

	assets := make([]Asset, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		name := e.Name()
		if _, ok := extensions[kind][strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}

		assets = append(assets, Asset{
			Name:  name,
			Label: strings.TrimSuffix(name, filepath.Ext(name)),
			URL:   "/scene-assets/" + string(kind) + "/" + name,
		})
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })

	return assets, nil
}

func (c *Catalog) Backgrounds() ([]Asset, error) { return c.list(KindBackground) }
func (c *Catalog) Music() ([]Asset, error)       { return c.list(KindMusic) }

// Path resolves a selection to a file. Names are matched against the listing, so anything that
// is not a catalog entry is rejected.
func (c *Catalog) Path(kind Kind, name string) (string, error) {
	assets, err := c.list(kind)
	if err != nil {
		return "", err
	}

	for _, a := range assets {
		if a.Name == name {
			return filepath.Join(c.dirs[kind], a.Name), nil
		}
	}

	return "", fmt.Errorf("%w: %s %q", ErrUnknownAsset, kind, name)
}

func (c *Catalog) Background(name string) (string, error) { return c.Path(KindBackground, name) }
func (c *Catalog) Track(name string) (string, error)      { return c.Path(KindMusic, name) }

// Defaults is the first background and the first track, the selection used by demo mode.
func (c *Catalog) Defaults() (Defaults, error) {
	var d Defaults

	bgs, err := c.Backgrounds()
	if err != nil {
		return d, err
	}
	if len(bgs) > 0 {
		d.Background = bgs[0].Name
	}

	tracks, err := c.Music()
	if err != nil {
		return d, err
	}
	if len(tracks) > 0 {
		d.Music = tracks[0].Name
	}

	return d, nil
}
