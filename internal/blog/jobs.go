package blog

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/scheduler"
)

const (
	JobDashboardStats = "dashboard-stats"
	JobSettingsResync = "settings-resync"
)

func (s *Service) registerJobs() error {
	var statsCron, settingsCron string
	if s.cfg.Jobs != nil {
		statsCron = s.cfg.Jobs.StatsRefreshSchedule
		settingsCron = s.cfg.Jobs.SettingsResyncSchedule
	}

	jobs := []scheduler.Job{
		{
			ID:                JobDashboardStats,
			Name:              "Dashboard Statistics",
			Description:       "Recomputes the admin dashboard statistics",
			Cron:              statsCron,
			Func:              s.refreshDashboardJob,
			Singleton:         true,
			InstantAfterStart: true,
		},
		{
			ID:          JobSettingsResync,
			Name:        "Site Settings Resync",
			Description: "Reloads the site settings into the cache",
			Cron:        settingsCron,
			Func:        s.resyncSettingsJob,
			Singleton:   true,
		},
	}

	for _, job := range jobs {
		if job.Cron == "" {
			log.Warn("No schedule configured, job disabled", "job", job.ID)
			continue
		}
		if err := s.scheduler.AddJob(job); err != nil {
			return fmt.Errorf("failed to add job %s: %w", job.ID, err)
		}
		log.Debug("Registered job", "job", job.ID, "schedule", job.Cron)
	}
	return nil
}

// RunJob triggers a registered job immediately.
func (s *Service) RunJob(id string) error {
	return s.scheduler.RunJobNow(id)
}

func (s *Service) refreshDashboardJob(ctx context.Context) error {
	d, err := s.RefreshDashboard(ctx)
	if err != nil {
		return err
	}
	log.Debug("Dashboard refreshed", "posts", d.Totals.Posts, "users", d.Totals.Users)
	return nil
}

func (s *Service) resyncSettingsJob(ctx context.Context) error {
	return s.ResyncSettings(ctx)
}
