package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DateRange is a relative time bucket used by listing filters.
type DateRange string

const (
	DateRangeAny   DateRange = ""
	DateRangeToday DateRange = "today"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
	DateRangeYear  DateRange = "year"
)

// ParseDateRange returns the matching DateRange, or DateRangeAny for unknown values.
func ParseDateRange(s string) DateRange {
	switch r := DateRange(strings.ToLower(strings.TrimSpace(s))); r {
	case DateRangeToday, DateRangeWeek, DateRangeMonth, DateRangeYear:
		return r
	default:
		return DateRangeAny
	}
}

// Since returns the lower bound of the range relative to now.
// The second return value is false when no bound applies.
func (r DateRange) Since(now time.Time) (time.Time, bool) {
	switch r {
	case DateRangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case DateRangeWeek:
		return now.AddDate(0, 0, -7), true
	case DateRangeMonth:
		return now.AddDate(0, 0, -30), true
	case DateRangeYear:
		return now.AddDate(0, 0, -365), true
	default:
		return time.Time{}, false
	}
}

// Page requests a single page of a listing.
type Page struct {
	Number int
	Size   int
}

// Paged is one page of a listing.
type Paged[T any] struct {
	Items      []T
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

func (p *Paged[T]) HasNext() bool { return p.Page < p.TotalPages }
func (p *Paged[T]) HasPrev() bool { return p.Page > 1 }

// paginate counts the rows of q, clamps the requested page into range and loads it.
func paginate[T any](q *gorm.DB, page Page, order string, preloads ...string) (*Paged[T], error) {
	q = q.Session(&gorm.Session{})

	size := page.Size
	if size < 1 {
		size = 10
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	number := page.Number
	if number < 1 {
		number = 1
	}
	if number > totalPages {
		number = totalPages
	}

	find := q.Order(order).Limit(size).Offset((number - 1) * size)
	for _, p := range preloads {
		find = find.Preload(p)
	}

	items := make([]T, 0, size)
	if err := find.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	return &Paged[T]{
		Items:      items,
		Total:      total,
		Page:       number,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

// likePattern builds a case-insensitive substring pattern for use with
// LOWER(column) LIKE ? ESCAPE '\'.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

const likeEscape = ` ESCAPE '\'`

// containsAny matches pattern against any of the given columns.
func containsAny(columns ...string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "LOWER(" + c + ") LIKE ?" + likeEscape
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func repeat(v any, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func applyDateRange(q *gorm.DB, column string, r DateRange, now time.Time) *gorm.DB {
	if since, ok := r.Since(nowOr(now)); ok {
		q = q.Where(column+" >= ?", since)
	}
	return q
}

// PostFilter narrows a post listing.
type PostFilter struct {
	AuthorID   *uint
	CategoryID *uint
	TagID      *uint
	Status     PostStatus
	// Query matches title or content, and the author's username when SearchAuthor is set.
	Query        string
	SearchAuthor bool
	DateRange    DateRange
	Now          time.Time
	// OrderBy is one of the PostOrderings keys; anything else sorts newest first.
	OrderBy string
}

// PostOrderings maps the accepted order_by values to SQL.
var PostOrderings = map[string]string{
	"-created_at": "posts.created_at DESC, posts.id DESC",
	"created_at":  "posts.created_at ASC, posts.id ASC",
	"-updated_at": "posts.updated_at DESC, posts.id DESC",
	"updated_at":  "posts.updated_at ASC, posts.id ASC",
	"title":       "posts.title ASC, posts.id ASC",
}

func (f PostFilter) order() string {
	if o, ok := PostOrderings[f.OrderBy]; ok {
		return o
	}
	return PostOrderings["-created_at"]
}

func (f PostFilter) apply(ctx context.Context, db *gorm.DB) *gorm.DB {
	q := db.WithContext(ctx).Model(&Post{})
	if f.AuthorID != nil {
		q = q.Where("posts.author_id = ?", *f.AuthorID)
	}
	if f.CategoryID != nil {
		q = q.Where("posts.category_id = ?", *f.CategoryID)
	}
	if f.TagID != nil {
		q = q.Where("posts.id IN (?)", db.Table("post_tags").Select("post_id").Where("tag_id = ?", *f.TagID))
	}
	if f.Status != "" {
		q = q.Where("posts.status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		pattern := likePattern(s)
		if f.SearchAuthor {
			q = q.Where(
				"("+containsAny("posts.title", "posts.content")+" OR posts.author_id IN (?))",
				pattern, pattern,
				db.Model(&User{}).Select("id").Where(containsAny("username"), pattern),
			)
		} else {
			q = q.Where(containsAny("posts.title", "posts.content"), pattern, pattern)
		}
	}
	return applyDateRange(q, "posts.created_at", f.DateRange, f.Now)
}

// CommentFilter narrows a comment listing.
type CommentFilter struct {
	AuthorID *uint
	PostID   *uint
	// Query matches the comment body or the post title.
	Query     string
	DateRange DateRange
	Now       time.Time
}

func (f CommentFilter) apply(ctx context.Context, db *gorm.DB) *gorm.DB {
	q := db.WithContext(ctx).Model(&Comment{})
	if f.AuthorID != nil {
		q = q.Where("comments.author_id = ?", *f.AuthorID)
	}
	if f.PostID != nil {
		q = q.Where("comments.post_id = ?", *f.PostID)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		pattern := likePattern(s)
		q = q.Where(
			"("+containsAny("comments.content")+" OR comments.post_id IN (?))",
			pattern,
			db.Model(&Post{}).Select("id").Where(containsAny("title"), pattern),
		)
	}
	return applyDateRange(q, "comments.created_at", f.DateRange, f.Now)
}

// LikeFilter narrows a like listing.
type LikeFilter struct {
	UserID *uint
	PostID *uint
	// Query matches the liked post's title.
	Query     string
	DateRange DateRange
	Now       time.Time
}

func (f LikeFilter) apply(ctx context.Context, db *gorm.DB) *gorm.DB {
	q := db.WithContext(ctx).Model(&Like{})
	if f.UserID != nil {
		q = q.Where("likes.user_id = ?", *f.UserID)
	}
	if f.PostID != nil {
		q = q.Where("likes.post_id = ?", *f.PostID)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where("likes.post_id IN (?)", db.Model(&Post{}).Select("id").Where(containsAny("title"), likePattern(s)))
	}
	return applyDateRange(q, "likes.created_at", f.DateRange, f.Now)
}

// UserFilter narrows the user listing.
type UserFilter struct {
	// Query matches username, email, first or last name.
	Query      string
	JoinedFrom *time.Time
	JoinedTo   *time.Time
}

func (f UserFilter) apply(ctx context.Context, db *gorm.DB) *gorm.DB {
	q := db.WithContext(ctx).Model(&User{})
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where(containsAny("username", "email", "first_name", "last_name"), repeat(likePattern(s), 4)...)
	}
	if f.JoinedFrom != nil {
		q = q.Where("date_joined >= ?", *f.JoinedFrom)
	}
	if f.JoinedTo != nil {
		q = q.Where("date_joined < ?", *f.JoinedTo)
	}
	return q
}
