package database

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is an article written by a user.
type Post struct {
	ID         uint       `gorm:"primarykey"`
	AuthorID   uint       `gorm:"not null;index"`
	Author     *User      `gorm:"constraint:OnDelete:CASCADE;"`
	CategoryID *uint      `gorm:"index"`
	Category   *Category  `gorm:"constraint:OnDelete:SET NULL;"`
	Title      string     `gorm:"size:200;not null"`
	Slug       string     `gorm:"size:60;uniqueIndex;not null"`
	Content    string     `gorm:"type:text;not null"`
	Status     PostStatus `gorm:"size:10;not null;index"`
	Tags       []Tag      `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE;"`
	CreatedAt  time.Time  `gorm:"index"`
	UpdatedAt  time.Time
}

// PostCounts holds the interaction counters of a post.
type PostCounts struct {
	Comments int64
	Likes    int64
}

// PostScore is a post ranked by likes.
type PostScore struct {
	Post     Post
	Likes    int64
	Comments int64
}

const maxSlugAttempts = 5

// CreatePost inserts the post with a unique slug and links the named tags,
// creating missing tags. Everything happens in one transaction.
func (c *Client) CreatePost(ctx context.Context, post *Post, tagNames []string) error {
	var err error
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			slug, err := uniqueSlug(ctx, tx, &Post{}, Slugify(post.Title), "post")
			if err != nil {
				return err
			}
			post.ID = 0
			post.Slug = slug
			if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
				return err
			}
			return setPostTags(ctx, tx, post, tagNames)
		})
		if !IsDuplicate(err) {
			break
		}
		log.Debug("post slug collided, retrying", "slug", post.Slug, "attempt", attempt+1)
	}
	if err != nil {
		log.Error("failed to create post", "error", err)
		return err
	}
	return nil
}

// UpdatePost saves the editable columns of the post and replaces its tag set.
func (c *Client) UpdatePost(ctx context.Context, post *Post, tagNames []string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(post).
			Select("title", "content", "status", "category_id", "updated_at").
			Updates(post)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(post).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("failed to clear tags: %w", err)
		}
		return setPostTags(ctx, tx, post, tagNames)
	})
	if err != nil {
		if !IsNotFound(err) {
			log.Error("failed to update post", "post_id", post.ID, "error", err)
		}
		return err
	}
	return nil
}

func setPostTags(ctx context.Context, tx *gorm.DB, post *Post, tagNames []string) error {
	tags := make([]Tag, 0, len(tagNames))
	for _, name := range tagNames {
		tag, _, err := getOrCreateTag(ctx, tx, name)
		if err != nil {
			return err
		}
		tags = append(tags, *tag)
	}
	post.Tags = tags
	if len(tags) == 0 {
		return nil
	}
	if err := tx.Model(post).Association("Tags").Append(tags); err != nil {
		return fmt.Errorf("failed to link tags: %w", err)
	}
	return nil
}

func (c *Client) GetPostByID(ctx context.Context, id uint) (*Post, error) {
	var post Post
	if err := c.db.WithContext(ctx).
		Preload("Author").
		Preload("Author.Profile").
		Preload("Category").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name") }).
		First(&post, id).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get post by ID", "error", err)
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost removes the post with its likes, comments and tag links.
func (c *Client) DeletePost(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && !IsNotFound(err) {
		log.Error("failed to delete post", "post_id", id, "error", err)
	}
	return err
}

// ListPosts returns one page of posts matching the filter.
func (c *Client) ListPosts(ctx context.Context, filter PostFilter, page Page) (*Paged[Post], error) {
	res, err := paginate[Post](filter.apply(ctx, c.db), page, filter.order(), "Author", "Category", "Tags")
	if err != nil {
		log.Error("failed to list posts", "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Client) GetRecentPosts(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	if err := c.db.WithContext(ctx).
		Preload("Author").
		Preload("Category").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		log.Error("failed to get recent posts", "error", err)
		return nil, err
	}
	return posts, nil
}

// GetPostCounts returns comment and like counts keyed by post ID.
// With approvedOnly set, only approved comments are counted.
func (c *Client) GetPostCounts(ctx context.Context, postIDs []uint, approvedOnly bool) (map[uint]PostCounts, error) {
	out := make(map[uint]PostCounts, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var where []any
	if approvedOnly {
		where = []any{"approved = ?", true}
	}
	comments, err := c.countBy(ctx, &Comment{}, "post_id", postIDs, where...)
	if err != nil {
		log.Error("failed to count comments per post", "error", err)
		return nil, err
	}
	likes, err := c.countBy(ctx, &Like{}, "post_id", postIDs)
	if err != nil {
		log.Error("failed to count likes per post", "error", err)
		return nil, err
	}
	for _, id := range postIDs {
		out[id] = PostCounts{Comments: comments[id], Likes: likes[id]}
	}
	return out, nil
}

// GetTopPostsByLikes returns the most liked posts with their like and comment counts.
func (c *Client) GetTopPostsByLikes(ctx context.Context, limit int) ([]PostScore, error) {
	var rows []idCount
	if err := c.db.WithContext(ctx).Model(&Like{}).
		Select("post_id AS id, COUNT(*) AS total").
		Group("post_id").
		Order("total DESC, post_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		log.Error("failed to get top posts", "error", err)
		return nil, err
	}
	if len(rows) == 0 {
		return []PostScore{}, nil
	}

	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var posts []Post
	if err := c.db.WithContext(ctx).Preload("Author").Where("id IN ?", ids).Find(&posts).Error; err != nil {
		log.Error("failed to load top posts", "error", err)
		return nil, err
	}
	comments, err := c.countBy(ctx, &Comment{}, "post_id", ids)
	if err != nil {
		log.Error("failed to count comments of top posts", "error", err)
		return nil, err
	}

	byID := make(map[uint]Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	scores := make([]PostScore, 0, len(rows))
	for _, r := range rows {
		if p, ok := byID[r.ID]; ok {
			scores = append(scores, PostScore{Post: p, Likes: r.Total, Comments: comments[r.ID]})
		}
	}
	return scores, nil
}

func (c *Client) CountPosts(ctx context.Context, status PostStatus, since *time.Time) (int64, error) {
	q := c.db.WithContext(ctx).Model(&Post{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		log.Error("failed to count posts", "error", err)
		return 0, err
	}
	return count, nil
}
