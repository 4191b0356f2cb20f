package blog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/thoughtnest/thoughtnest/internal/config"
	"github.com/thoughtnest/thoughtnest/internal/database"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardCacheKey = "current"
	dashboardListSize = 5
)

// Dashboard is the aggregated site statistics shown to staff.
type Dashboard struct {
	Totals          DashboardTotals    `json:"totals"`
	Activity        DashboardActivity  `json:"activity"`
	InteractionRate float64            `json:"interactionRate"`
	TopPosts        []DashboardPost    `json:"topPosts"`
	RecentPosts     []DashboardPost    `json:"recentPosts"`
	RecentComments  []DashboardComment `json:"recentComments"`
	TopAuthors      []DashboardUser    `json:"topAuthors"`
	RecentUsers     []DashboardUser    `json:"recentUsers"`
	Storage         *DiskUsage         `json:"storage,omitempty"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// DashboardTotals holds the row counts of the site.
type DashboardTotals struct {
	Posts      int64 `json:"posts"`
	Published  int64 `json:"published"`
	Drafts     int64 `json:"drafts"`
	Comments   int64 `json:"comments"`
	Likes      int64 `json:"likes"`
	Users      int64 `json:"users"`
	Categories int64 `json:"categories"`
	Tags       int64 `json:"tags"`
}

// DashboardActivity holds the counts of recently created rows.
type DashboardActivity struct {
	PostsWeek    int64 `json:"postsWeek"`
	CommentsWeek int64 `json:"commentsWeek"`
	UsersWeek    int64 `json:"usersWeek"`
	PostsDay     int64 `json:"postsDay"`
	CommentsDay  int64 `json:"commentsDay"`
}

type DashboardPost struct {
	ID       uint                `json:"id"`
	Title    string              `json:"title"`
	Slug     string              `json:"slug"`
	Status   database.PostStatus `json:"status"`
	Author   string              `json:"author"`
	Likes    int64               `json:"likes"`
	Comments int64               `json:"comments"`
	Created  time.Time           `json:"createdAt"`
}

type DashboardComment struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"postId"`
	PostTitle string    `json:"postTitle"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Approved  bool      `json:"approved"`
	Created   time.Time `json:"createdAt"`
}

type DashboardUser struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Posts      int64     `json:"posts"`
	DateJoined time.Time `json:"dateJoined"`
}

// DiskUsage describes the filesystem holding the sqlite database.
type DiskUsage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

// Dashboard returns the cached dashboard, computing it on a cache miss.
func (s *Service) Dashboard(ctx context.Context, actor *database.User) (*Dashboard, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	cached, err := s.dashboardCache.Get(ctx, dashboardCacheKey)
	if err == nil {
		return &cached, nil
	}
	return s.RefreshDashboard(ctx)
}

// RefreshDashboard recomputes the dashboard and stores it in the cache.
func (s *Service) RefreshDashboard(ctx context.Context) (*Dashboard, error) {
	d, err := s.computeDashboard(ctx)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(s.cfg.Cache.GetDashboardTTL()) * time.Second
	if err := s.dashboardCache.Set(ctx, dashboardCacheKey, *d, store.WithExpiration(ttl)); err != nil {
		log.Warn("failed to cache dashboard", "error", err)
	}
	return d, nil
}

func (s *Service) computeDashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	weekAgo := now.AddDate(0, 0, -7)
	dayAgo := now.Add(-24 * time.Hour)

	d := &Dashboard{GeneratedAt: now}
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, name string, fn func() (int64, error)) {
		g.Go(func() error {
			n, err := fn()
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", name, err)
			}
			*dst = n
			return nil
		})
	}

	count(&d.Totals.Posts, "posts", func() (int64, error) { return s.db.CountPosts(ctx, "", nil) })
	count(&d.Totals.Published, "published posts", func() (int64, error) {
		return s.db.CountPosts(ctx, database.PostStatusPublished, nil)
	})
	count(&d.Totals.Drafts, "drafts", func() (int64, error) { return s.db.CountPosts(ctx, database.PostStatusDraft, nil) })
	count(&d.Totals.Comments, "comments", func() (int64, error) { return s.db.CountComments(ctx, nil) })
	count(&d.Totals.Likes, "likes", func() (int64, error) { return s.db.CountLikes(ctx) })
	count(&d.Totals.Users, "users", func() (int64, error) { return s.db.CountUsers(ctx, nil) })
	count(&d.Totals.Categories, "categories", func() (int64, error) { return s.db.CountCategories(ctx) })
	count(&d.Totals.Tags, "tags", func() (int64, error) { return s.db.CountTags(ctx) })

	count(&d.Activity.PostsWeek, "recent posts", func() (int64, error) { return s.db.CountPosts(ctx, "", &weekAgo) })
	count(&d.Activity.CommentsWeek, "recent comments", func() (int64, error) { return s.db.CountComments(ctx, &weekAgo) })
	count(&d.Activity.UsersWeek, "recent users", func() (int64, error) { return s.db.CountUsers(ctx, &weekAgo) })
	count(&d.Activity.PostsDay, "posts today", func() (int64, error) { return s.db.CountPosts(ctx, "", &dayAgo) })
	count(&d.Activity.CommentsDay, "comments today", func() (int64, error) { return s.db.CountComments(ctx, &dayAgo) })

	g.Go(func() error {
		top, err := s.db.GetTopPostsByLikes(ctx, dashboardListSize)
		if err != nil {
			return fmt.Errorf("failed to get top posts: %w", err)
		}
		d.TopPosts = lo.Map(top, func(p database.PostScore, _ int) DashboardPost {
			return dashboardPost(p.Post, p.Likes, p.Comments)
		})
		return nil
	})
	g.Go(func() error {
		posts, err := s.db.GetRecentPosts(ctx, dashboardListSize)
		if err != nil {
			return fmt.Errorf("failed to get recent posts: %w", err)
		}
		d.RecentPosts = lo.Map(posts, func(p database.Post, _ int) DashboardPost {
			return dashboardPost(p, 0, 0)
		})
		return nil
	})
	g.Go(func() error {
		comments, err := s.db.GetRecentComments(ctx, dashboardListSize)
		if err != nil {
			return fmt.Errorf("failed to get recent comments: %w", err)
		}
		d.RecentComments = lo.Map(comments, func(c database.Comment, _ int) DashboardComment {
			out := DashboardComment{
				ID:       c.ID,
				PostID:   c.PostID,
				Author:   usernameOf(c.Author),
				Content:  c.Content,
				Approved: c.Approved,
				Created:  c.CreatedAt,
			}
			if c.Post != nil {
				out.PostTitle = c.Post.Title
			}
			return out
		})
		return nil
	})
	g.Go(func() error {
		authors, err := s.db.GetTopAuthors(ctx, dashboardListSize)
		if err != nil {
			return fmt.Errorf("failed to get top authors: %w", err)
		}
		d.TopAuthors = lo.Map(authors, func(a database.UserScore, _ int) DashboardUser {
			return dashboardUser(a.User, a.Posts)
		})
		return nil
	})
	g.Go(func() error {
		users, err := s.db.GetRecentUsers(ctx, dashboardListSize)
		if err != nil {
			return fmt.Errorf("failed to get recent users: %w", err)
		}
		d.RecentUsers = lo.Map(users, func(u database.User, _ int) DashboardUser {
			return dashboardUser(u, 0)
		})
		return nil
	})
	g.Go(func() error {
		d.Storage = s.storageUsage(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("failed to compute dashboard", "error", err)
		return nil, err
	}

	if d.Totals.Posts > 0 {
		d.InteractionRate = float64(d.Totals.Comments+d.Totals.Likes) / float64(d.Totals.Posts)
	}
	return d, nil
}

// storageUsage returns the usage of the filesystem holding the sqlite file,
// or nil for other drivers and on error.
func (s *Service) storageUsage(ctx context.Context) *DiskUsage {
	dbCfg := s.cfg.Database
	if dbCfg == nil || dbCfg.Driver == config.DatabaseDriverPostgres || dbCfg.Path == "" {
		return nil
	}
	path := filepath.Dir(dbCfg.Path)
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		log.Warn("failed to get disk usage", "path", path, "error", err)
		return nil
	}
	return &DiskUsage{
		Path:        path,
		Total:       usage.Total,
		Used:        usage.Used,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
	}
}

func dashboardPost(p database.Post, likes, comments int64) DashboardPost {
	return DashboardPost{
		ID:       p.ID,
		Title:    p.Title,
		Slug:     p.Slug,
		Status:   p.Status,
		Author:   usernameOf(p.Author),
		Likes:    likes,
		Comments: comments,
		Created:  p.CreatedAt,
	}
}

func dashboardUser(u database.User, posts int64) DashboardUser {
	return DashboardUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Posts:      posts,
		DateJoined: u.DateJoined,
	}
}

func usernameOf(u *database.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
