package pipeline

import (
	"context"
	"errors"
	"fmt"

	"avatarcast/db"
	"avatarcast/internal/app/scene"
)

func (s *Service) checkAsset(kind scene.Kind, name string) error {
	if name == "" {
		return nil
	}

	var err error
	switch kind {
	case scene.KindBackground:
		_, err = s.scenes.Background(name)
	case scene.KindMusic:
		_, err = s.scenes.Track(name)
	}

	if errors.Is(err, scene.ErrUnknownAsset) {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, err)
	}

	return err
}

// SelectScene stores the background and music choice on the run; empty names clear the selection.
// An empty runID selects the latest run.
func (s *Service) SelectScene(ctx context.Context, runID, background, music string) (*db.Run, error) {
	if err := s.checkAsset(scene.KindBackground, background); err != nil {
		return nil, err
	}
	if err := s.checkAsset(scene.KindMusic, music); err != nil {
		return nil, err
	}

	run, err := s.latestRun(ctx, runID, true)
	if err != nil {
		return nil, err
	}

	run.Background = background
	run.Music = music

	if err := s.save(ctx, run, "scene"); err != nil {
		return nil, err
	}

	return run, nil
}
