package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

// Config holds the configuration for the ThoughtNest server and its dependencies.
type Config struct {
	// Listen is the address the server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// ServerURL is the public base URL of the server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// SessionKey is the key used to sign and encrypt session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// SecureCookies marks session cookies as Secure (HTTPS only).
	SecureCookies bool `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Gravatar holds the configuration for Gravatar profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
	// Admin holds the credentials of the administrator provisioned at startup.
	Admin *AdminConfig `yaml:"admin" mapstructure:"admin"`
	// Jobs holds the schedules of the background jobs.
	Jobs *JobsConfig `yaml:"jobs" mapstructure:"jobs"`
	// Pagination holds the page sizes of the listing pages.
	Pagination *PaginationConfig `yaml:"pagination" mapstructure:"pagination"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Driver is the database driver, either "sqlite" or "postgres".
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the Redis server if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// DashboardTTL is the number of seconds a computed admin dashboard stays cached.
	DashboardTTL int `yaml:"dashboard_ttl" mapstructure:"dashboard_ttl"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar support is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	// Valid values: "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// AdminConfig holds the credentials for the bootstrap administrator.
// All three values must be set for the account to be provisioned.
type AdminConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
}

// JobsConfig holds the cron schedules of the background jobs.
type JobsConfig struct {
	// StatsRefreshSchedule is the cron schedule for recomputing the admin dashboard.
	StatsRefreshSchedule string `yaml:"stats_refresh_schedule" mapstructure:"stats_refresh_schedule"`
	// SettingsResyncSchedule is the cron schedule for reloading site settings into the cache.
	SettingsResyncSchedule string `yaml:"settings_resync_schedule" mapstructure:"settings_resync_schedule"`
}

// PaginationConfig holds the page sizes of the listing pages.
// The home page uses the posts_per_page site setting instead.
type PaginationConfig struct {
	CategoryPosts   int `yaml:"category_posts" mapstructure:"category_posts"`
	TagPosts        int `yaml:"tag_posts" mapstructure:"tag_posts"`
	ManagePosts     int `yaml:"manage_posts" mapstructure:"manage_posts"`
	ProfileComments int `yaml:"profile_comments" mapstructure:"profile_comments"`
	ProfileLikes    int `yaml:"profile_likes" mapstructure:"profile_likes"`
	AdminPosts      int `yaml:"admin_posts" mapstructure:"admin_posts"`
	AdminComments   int `yaml:"admin_comments" mapstructure:"admin_comments"`
	AdminLikes      int `yaml:"admin_likes" mapstructure:"admin_likes"`
	AdminUsers      int `yaml:"admin_users" mapstructure:"admin_users"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// A missing config file is not an error; defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	// Set default values
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("THOUGHTNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.thoughtnest")
		v.AddConfigPath("/etc/thoughtnest")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("server_url", "http://localhost:8000")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 1209600) // 2 weeks
	v.SetDefault("secure_cookies", false)

	// Database defaults
	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.path", "./data/thoughtnest.db")
	v.SetDefault("database.dsn", "")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.dashboard_ttl", 300)

	// Gravatar defaults
	v.SetDefault("gravatar.enabled", true)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)

	// Job defaults
	v.SetDefault("jobs.stats_refresh_schedule", "*/5 * * * *")
	v.SetDefault("jobs.settings_resync_schedule", "*/10 * * * *")

	// Pagination defaults
	v.SetDefault("pagination.category_posts", 10)
	v.SetDefault("pagination.tag_posts", 10)
	v.SetDefault("pagination.manage_posts", 10)
	v.SetDefault("pagination.profile_comments", 15)
	v.SetDefault("pagination.profile_likes", 15)
	v.SetDefault("pagination.admin_posts", 15)
	v.SetDefault("pagination.admin_comments", 15)
	v.SetDefault("pagination.admin_likes", 15)
	v.SetDefault("pagination.admin_users", 10)
}

// the auto env function from viper only works for nested structs, if the struct to which a value binds isn't nil.
// The admin block has no defaults on purpose, so its env vars are bound manually.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("admin.username", "THOUGHTNEST_ADMIN_USERNAME")
	v.MustBindEnv("admin.email", "THOUGHTNEST_ADMIN_EMAIL")
	v.MustBindEnv("admin.password", "THOUGHTNEST_ADMIN_PASSWORD")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing thoughtnest config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	if len(c.SessionKey) < 32 {
		return fmt.Errorf("session key must be at least 32 characters long")
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be greater than 0")
	}

	if c.Database == nil {
		return fmt.Errorf("missing database config")
	}
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required when using sqlite")
		}
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
		}
	}

	if c.Admin != nil {
		set := 0
		for _, v := range []string{c.Admin.Username, c.Admin.Email, c.Admin.Password} {
			if v != "" {
				set++
			}
		}
		if set != 0 && set != 3 {
			return fmt.Errorf("admin username, email and password must be set together")
		}
	}

	if c.Jobs != nil {
		for name, schedule := range map[string]string{
			"stats refresh":   c.Jobs.StatsRefreshSchedule,
			"settings resync": c.Jobs.SettingsResyncSchedule,
		} {
			if schedule == "" {
				continue
			}
			// Basic validation for cron format (5 fields)
			if len(strings.Fields(schedule)) != 5 {
				return fmt.Errorf("%s schedule must be a valid cron expression with 5 fields (minute hour day month weekday)", name)
			}
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Admin != nil {
		c.Admin.Username = strings.TrimSpace(c.Admin.Username)
		c.Admin.Email = strings.TrimSpace(c.Admin.Email)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// HasAdmin reports whether bootstrap administrator credentials are configured.
func (c *Config) HasAdmin() bool {
	return c != nil && c.Admin != nil && c.Admin.Username != "" && c.Admin.Email != "" && c.Admin.Password != ""
}

// GetDashboardTTL returns the dashboard cache TTL in seconds with proper defaults.
func (c *CacheConfig) GetDashboardTTL() int {
	if c == nil || c.DashboardTTL <= 0 {
		return 300
	}
	return c.DashboardTTL
}

// PageSize returns the page size for the given listing, defaulting to 10.
func (p *PaginationConfig) PageSize(listing Listing) int {
	if p == nil {
		return listing.defaultSize()
	}
	var size int
	switch listing {
	case ListingCategoryPosts:
		size = p.CategoryPosts
	case ListingTagPosts:
		size = p.TagPosts
	case ListingManagePosts:
		size = p.ManagePosts
	case ListingProfileComments:
		size = p.ProfileComments
	case ListingProfileLikes:
		size = p.ProfileLikes
	case ListingAdminPosts:
		size = p.AdminPosts
	case ListingAdminComments:
		size = p.AdminComments
	case ListingAdminLikes:
		size = p.AdminLikes
	case ListingAdminUsers:
		size = p.AdminUsers
	}
	if size <= 0 {
		return listing.defaultSize()
	}
	return size
}

// Listing identifies a paginated listing page.
type Listing string

const (
	ListingCategoryPosts   Listing = "category_posts"
	ListingTagPosts        Listing = "tag_posts"
	ListingManagePosts     Listing = "manage_posts"
	ListingProfileComments Listing = "profile_comments"
	ListingProfileLikes    Listing = "profile_likes"
	ListingAdminPosts      Listing = "admin_posts"
	ListingAdminComments   Listing = "admin_comments"
	ListingAdminLikes      Listing = "admin_likes"
	ListingAdminUsers      Listing = "admin_users"
)

func (l Listing) defaultSize() int {
	switch l {
	case ListingProfileComments, ListingProfileLikes, ListingAdminPosts, ListingAdminComments, ListingAdminLikes:
		return 15
	default:
		return 10
	}
}
