package blog

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/thoughtnest/thoughtnest/internal/cache"
	"github.com/thoughtnest/thoughtnest/internal/database"
	"github.com/thoughtnest/thoughtnest/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// SchedulerState is the data of the admin scheduler panel.
type SchedulerState struct {
	Jobs  []scheduler.JobInfo `json:"jobs"`
	Cache *cache.Stats        `json:"cache"`
}

// Scheduler returns the background jobs and the cache statistics.
func (s *Service) Scheduler(actor *database.User) (*SchedulerState, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return &SchedulerState{
		Jobs: s.scheduler.GetJobs(),
		Cache: &cache.Stats{
			Stats:     s.settingsCache.GetStats(),
			CacheName: string(s.settingsCache.GetType()),
		},
	}, nil
}

// TriggerJob runs a background job now.
func (s *Service) TriggerJob(actor *database.User, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if _, ok := s.scheduler.GetJob(id); !ok {
		return &NotFoundError{Resource: "Job " + id}
	}
	return s.scheduler.RunJobNow(id)
}

// SetJobEnabled pauses or resumes a background job.
func (s *Service) SetJobEnabled(actor *database.User, id string, enabled bool) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if _, ok := s.scheduler.GetJob(id); !ok {
		return &NotFoundError{Resource: "Job " + id}
	}
	return s.scheduler.SetEnabled(id, enabled)
}

// InvalidateCaches drops the cached settings and dashboard. The next read
// goes to the database.
func (s *Service) InvalidateCaches(ctx context.Context, actor *database.User) error {
	if err := requireStaff(actor); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		return ignoreMissing(s.settingsCache.Delete(ctx, settingsCacheKey))
	})
	g.Go(func() error {
		return ignoreMissing(s.dashboardCache.Delete(ctx, dashboardCacheKey))
	})
	if err := g.Wait(); err != nil {
		log.Error("Failed to invalidate caches", "error", err)
		return err
	}
	log.Info("Invalidated caches", "by", actor.Username)
	return nil
}

func ignoreMissing(err error) error {
	if err == nil || errors.Is(err, store.NotFound{}) {
		return nil
	}
	return err
}
