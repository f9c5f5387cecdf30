package noteservice

import (
	"context"
	"log/slog"

	"github.com/starford/notegraph/internal/vcs"
)

// ExitTask is the work queued when a CLI command finishes: auto-tag recently
// edited notes, sync with git, and rebuild the index when the pull brought
// in new commits. Any nil collaborator skips its step.
func (s *Service) ExitTask(autoTag bool, git *vcs.Git) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if autoTag {
			n, err := s.AutoTagRecent(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Info("auto-tag: notes updated", slog.Int("count", n))
			}
		}
		if git == nil {
			return nil
		}
		res, err := git.Sync(ctx, "Auto-sync on exit")
		if err != nil {
			return err
		}
		s.logger.Debug("git sync done",
			slog.Bool("committed", res.Committed),
			slog.Bool("pulled", res.Pulled),
			slog.Bool("pushed", res.Pushed))
		if res.Pulled {
			_, err := s.Rebuild(ctx)
			return err
		}
		return nil
	}
}
