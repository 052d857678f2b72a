// Package workspace owns the on-disk layout: uploaded avatars and one directory per run.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidRunID = errors.New("invalid run id")

type Config struct {
	OutputDir string `yaml:"output_dir"`
}

type Workspace struct {
	root string
}

func New(cfg *Config) *Workspace {
	root := cfg.OutputDir
	if root == "" {
		root = "output"
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return &Workspace{root: root}
}

func (w *Workspace) Root() string      { return w.root }
func (w *Workspace) AvatarDir() string { return filepath.Join(w.root, "avatars") }
func (w *Workspace) RunsDir() string   { return filepath.Join(w.root, "runs") }

// Init creates the directory tree; safe to call repeatedly.
func (w *Workspace) Init() error {
	for _, dir := range []string{w.root, w.AvatarDir(), w.RunsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return nil
}

// AvatarPath resolves an avatar reference such as "/avatars/me.png" to a file in the avatar dir.
// Only the base name is used.
func (w *Workspace) AvatarPath(ref string) string {
	return filepath.Join(w.AvatarDir(), filepath.Base(strings.ReplaceAll(ref, "\\", "/")))
}

func (w *Workspace) RunDir(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}

	return filepath.Join(w.RunsDir(), id), nil
}

// RunFile resolves name inside the run directory; name is reduced to its base.
func (w *Workspace) RunFile(id, name string) (string, error) {
	dir, err := w.RunDir(id)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, filepath.Base(name)), nil
}

// Exists reports whether path is a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SafeName turns a user supplied filename into one that is safe to store, in the manner of werkzeug's
// secure_filename. It returns "" when nothing usable remains.
func SafeName(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	s := b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")

	return s
}

// Stem returns name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
