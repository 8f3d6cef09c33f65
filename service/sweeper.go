package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dicomlite/dicomlite/config"
	"github.com/dicomlite/dicomlite/infra"
	"github.com/dicomlite/dicomlite/repository"
)

// Sweeper periodically deletes studies whose expiry has passed, through the
// same delete path as explicit deletion. One sweep runs at a time; a tick
// that finds a sweep still in flight is skipped, not queued. A failing study
// is logged and picked up again on the next tick.
type Sweeper struct {
	interval time.Duration
	infra    *infra.Infra
	repo     *repository.Repository
	deleter  *DeleteService

	mu sync.Mutex
}

func NewSweeper(cfg *config.Config, infra *infra.Infra, repo *repository.Repository, deleter *DeleteService) *Sweeper {
	interval := time.Duration(cfg.EnvConfig.Sweeper.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		interval: interval,
		infra:    infra,
		repo:     repo,
		deleter:  deleter,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.infra.Logger.InfoWithContextf(ctx, "[Sweeper] started, interval %s", s.interval)
		for {
			select {
			case <-ctx.Done():
				s.infra.Logger.InfoWithContextf(ctx, "[Sweeper] shutting down")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single sweep. It returns the number of deleted studies
// and whether the tick was skipped because a sweep was already running. It
// never panics the host process.
func (s *Sweeper) RunOnce(ctx context.Context) (deleted int, skipped bool) {
	if !s.mu.TryLock() {
		s.infra.Logger.WarningWithContextf(ctx, "[Sweeper] previous sweep still running, skipping tick")
		return 0, true
	}
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.infra.Logger.ErrorWithContextf(ctx, fmt.Errorf("%v", r), "[Sweeper] sweep panicked")
		}
	}()

	studies, err := s.repo.StudyRepo.FindExpired(time.Now().UTC())
	if err != nil {
		s.infra.Logger.ErrorWithContextf(ctx, err, "[Sweeper] failed to list expired studies")
		return 0, false
	}

	// Each study's deletion is its own transaction; one failure does not
	// block the others.
	for _, study := range studies {
		entries, err := s.deleter.DeleteStudy(ctx, study.StudyInstanceUID)
		if err != nil {
			s.infra.Logger.ErrorWithContextf(ctx, err,
				"[Sweeper] failed to delete expired study %s, will retry next tick", study.StudyInstanceUID)
			continue
		}
		deleted++
		s.infra.Logger.InfoWithContextf(ctx, "[Sweeper] deleted expired study %s (%d instance(s))",
			study.StudyInstanceUID, len(entries))
	}
	return deleted, false
}
