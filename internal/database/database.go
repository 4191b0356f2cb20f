package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"github.com/thoughtnest/thoughtnest/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// DB is the storage interface used by the blog service.
type DB interface {
	// Accounts
	CreateUser(ctx context.Context, user *User, profile *Profile) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string, excludeUserID uint) (bool, error)
	UpdateUser(ctx context.Context, user *User) error
	UpdateProfile(ctx context.Context, profile *Profile) error
	SetLastLogin(ctx context.Context, userID uint, at time.Time) error
	SetPasswordHash(ctx context.Context, userID uint, hash string) error
	SetStaff(ctx context.Context, userID uint, staff bool) error
	DeleteUser(ctx context.Context, userID uint) error
	ListUsers(ctx context.Context, filter UserFilter, page Page) (*Paged[User], error)
	GetRecentUsers(ctx context.Context, limit int) ([]User, error)
	GetUserCounts(ctx context.Context, userIDs []uint) (map[uint]UserCounts, error)
	GetTopAuthors(ctx context.Context, limit int) ([]UserScore, error)

	// Posts
	CreatePost(ctx context.Context, post *Post, tagNames []string) error
	UpdatePost(ctx context.Context, post *Post, tagNames []string) error
	GetPostByID(ctx context.Context, id uint) (*Post, error)
	DeletePost(ctx context.Context, id uint) error
	ListPosts(ctx context.Context, filter PostFilter, page Page) (*Paged[Post], error)
	GetRecentPosts(ctx context.Context, limit int) ([]Post, error)
	GetPostCounts(ctx context.Context, postIDs []uint, approvedOnly bool) (map[uint]PostCounts, error)
	GetTopPostsByLikes(ctx context.Context, limit int) ([]PostScore, error)

	// Taxonomy
	GetOrCreateTag(ctx context.Context, name string) (*Tag, bool, error)
	GetOrCreateCategory(ctx context.Context, name string) (*Category, bool, error)
	GetCategoryByID(ctx context.Context, id uint) (*Category, error)
	GetCategoryByName(ctx context.Context, name string) (*Category, error)
	GetTagByID(ctx context.Context, id uint) (*Tag, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListCategoriesWithCounts(ctx context.Context, publishedOnly bool, limit int) ([]CategoryCount, error)
	ListTagsWithCounts(ctx context.Context, publishedOnly bool, limit int) ([]TagCount, error)
	GetRecentPostsByCategory(ctx context.Context, perCategory int) (map[uint][]Post, error)
	DeleteCategory(ctx context.Context, id uint) error
	DeleteTag(ctx context.Context, id uint) error

	// Comments
	CreateComment(ctx context.Context, comment *Comment) error
	GetCommentByID(ctx context.Context, id uint) (*Comment, error)
	GetPostComments(ctx context.Context, postID uint, approvedOnly bool) ([]Comment, error)
	ListComments(ctx context.Context, filter CommentFilter, page Page) (*Paged[Comment], error)
	GetRecentComments(ctx context.Context, limit int) ([]Comment, error)
	ApproveComment(ctx context.Context, id uint) error
	DeleteComment(ctx context.Context, id uint) error
	DeleteAllComments(ctx context.Context) (int64, error)

	// Likes
	AddLike(ctx context.Context, postID, userID uint) (bool, error)
	RemoveLike(ctx context.Context, postID, userID uint) (bool, error)
	HasLiked(ctx context.Context, postID, userID uint) (bool, error)
	GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	ListLikes(ctx context.Context, filter LikeFilter, page Page) (*Paged[Like], error)

	// Site settings
	InitSiteSettings(ctx context.Context, defaults SiteSettings) (*SiteSettings, error)
	GetSiteSettings(ctx context.Context) (*SiteSettings, error)
	SaveSiteSettings(ctx context.Context, settings *SiteSettings) error

	// Statistics
	CountPosts(ctx context.Context, status PostStatus, since *time.Time) (int64, error)
	CountComments(ctx context.Context, since *time.Time) (int64, error)
	CountLikes(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context, since *time.Time) (int64, error)
	CountCategories(ctx context.Context) (int64, error)
	CountTags(ctx context.Context) (int64, error)

	// Utility
	Transaction(ctx context.Context, fn func(tx DB) error) error
	Ping(ctx context.Context) error
	Close() error
}

// New creates a new database connection and performs migrations.
func New(cfg *config.DatabaseConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing database config")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DatabaseDriverSQLite, "":
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	c := &Client{db: db}
	if err := c.Migrate(); err != nil {
		c.Close() //nolint: errcheck, gosec
		return nil, err
	}

	return c, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
}

func newLogger() logger.Interface {
	return logger.New(
		log.Default().WithPrefix("gorm").StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Migrate creates or updates the schema.
func (c *Client) Migrate() error {
	if err := c.db.AutoMigrate(
		&User{},
		&Profile{},
		&Category{},
		&Tag{},
		&Post{},
		&Comment{},
		&Like{},
		&SiteSettings{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Transaction runs fn inside a database transaction.
// The DB passed to fn is bound to the transaction.
func (c *Client) Transaction(ctx context.Context, fn func(tx DB) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Client{db: tx})
	})
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// IsNotFound reports whether err is gorm's record not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
