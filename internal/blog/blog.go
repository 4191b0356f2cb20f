// Package blog implements the accounts, content, moderation and site settings
// operations of ThoughtNest on top of the storage layer.
package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/cache"
	"github.com/thoughtnest/thoughtnest/internal/config"
	"github.com/thoughtnest/thoughtnest/internal/database"
	"github.com/thoughtnest/thoughtnest/internal/gravatar"
	"github.com/thoughtnest/thoughtnest/internal/scheduler"
	"golang.org/x/crypto/bcrypt"
)

// Service is the application core used by the HTTP handlers and the CLI.
type Service struct {
	cfg       *config.Config
	db        database.DB
	scheduler *scheduler.Scheduler
	avatars   *gravatar.Resolver

	settingsCache  *cache.PrefixedCache[database.SiteSettings]
	dashboardCache *cache.PrefixedCache[Dashboard]

	now          func() time.Time
	passwordCost int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost used for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.passwordCost = cost }
}

// New creates the service. Init must be called before serving requests.
func New(cfg *config.Config, db database.DB, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing config")
	}
	if db == nil {
		return nil, fmt.Errorf("missing database")
	}

	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	store := cache.NewStore(cfg.Cache)
	cacheType := config.CacheTypeMemory
	if cfg.Cache != nil {
		cacheType = cfg.Cache.Type
	}

	s := &Service{
		cfg:            cfg,
		db:             db,
		scheduler:      sched,
		avatars:        gravatar.New(cfg.Gravatar),
		settingsCache:  cache.NewPrefixedCache[database.SiteSettings](store, cacheType, cache.SettingsCachePrefix),
		dashboardCache: cache.NewPrefixedCache[Dashboard](store, cacheType, cache.DashboardCachePrefix),
		now:            time.Now,
		passwordCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init creates the site settings row if needed, primes the cache and
// provisions the configured administrator.
func (s *Service) Init(ctx context.Context) error {
	if _, err := s.InitSettings(ctx); err != nil {
		return fmt.Errorf("failed to initialize site settings: %w", err)
	}

	if s.cfg.HasAdmin() {
		created, err := s.BootstrapAdmin(ctx, s.cfg.Admin.Username, s.cfg.Admin.Email, s.cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("failed to provision administrator: %w", err)
		}
		if created {
			log.Info("Created administrator account", "username", s.cfg.Admin.Username)
		} else {
			log.Debug("Administrator account already exists", "username", s.cfg.Admin.Username)
		}
	}
	return nil
}

// Run registers the background jobs and starts the scheduler.
func (s *Service) Run() error {
	if err := s.registerJobs(); err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

// Close stops the scheduler.
func (s *Service) Close() error {
	return s.scheduler.Stop()
}

// Jobs returns the state of the background jobs.
func (s *Service) Jobs() []scheduler.JobInfo {
	return s.scheduler.GetJobs()
}

// Avatars returns the avatar URL resolver.
func (s *Service) Avatars() *gravatar.Resolver {
	return s.avatars
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func requireStaff(actor *database.User) error {
	if !actor.IsAdmin() {
		return permissionf("You do not have permission to access this page.")
	}
	return nil
}

// wrapNotFound converts gorm's not found error into a NotFoundError for resource.
func wrapNotFound(err error, resource string, id uint) error {
	if database.IsNotFound(err) {
		return notFound(resource, id)
	}
	return err
}
