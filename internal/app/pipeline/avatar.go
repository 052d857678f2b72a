package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"avatarcast/internal/app/workspace"
	"avatarcast/pkg/tools"

	"github.com/dchest/uniuri"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const defaultMaxAvatarSize = 1024

func (s *Service) maxAvatarSize() int {
	if s.cfg.MaxAvatarSize <= 0 {
		return defaultMaxAvatarSize
	}
	return s.cfg.MaxAvatarSize
}

// UploadAvatar stores an uploaded image as a PNG in the avatar dir and returns its file name.
// The image is auto-oriented and fit within the configured bounds without upscaling.
func (s *Service) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	name := workspace.SafeName(filename)
	if name == "" {
		return "", ErrEmptyFilename
	}

	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidImage, err)
	}

	size := s.maxAvatarSize()
	dst := imaging.Fit(src, size, size, imaging.Lanczos)

	var out bytes.Buffer
	if err := imaging.Encode(&out, dst, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}

	stored := workspace.Stem(name) + ".png"
	if workspace.Exists(s.ws.AvatarPath(stored)) {
		stored = workspace.Stem(name) + "_" + uniuri.NewLen(6) + ".png"
	}

	if err := tools.WriteFileAtomic(s.ws.AvatarPath(stored), out.Bytes()); err != nil {
		return "", fmt.Errorf("save avatar: %w", err)
	}

	s.logger.Info("avatar stored", "name", stored, "width", dst.Bounds().Dx(), "height", dst.Bounds().Dy())

	return stored, nil
}

// RemoveBackground cuts the avatar out of its background, storing <stem>_nobg.png next to it.
func (s *Service) RemoveBackground(ctx context.Context, avatar string) (string, error) {
	if avatar == "" {
		return "", ErrMissingInput
	}

	path := s.ws.AvatarPath(avatar)
	if !workspace.Exists(path) {
		return "", fmt.Errorf("%w: avatar %s", ErrMissingInput, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}

	cutout, err := s.remover.Remove(ctx, data, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("background removal: %w", err)
	}

	name := workspace.Stem(filepath.Base(path)) + "_nobg.png"
	if err := tools.WriteFileAtomic(s.ws.AvatarPath(name), cutout); err != nil {
		return "", fmt.Errorf("save cutout: %w", err)
	}

	s.logger.Info("background removed", "avatar", filepath.Base(path), "cutout", name)

	return name, nil
}
