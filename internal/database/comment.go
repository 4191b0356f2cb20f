package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Comment is a reply to a post. Comments outlive their author.
type Comment struct {
	ID        uint      `gorm:"primarykey"`
	PostID    uint      `gorm:"not null;index"`
	Post      *Post     `gorm:"constraint:OnDelete:CASCADE;"`
	AuthorID  *uint     `gorm:"index"`
	Author    *User     `gorm:"constraint:OnDelete:SET NULL;"`
	Content   string    `gorm:"type:text;not null"`
	Approved  bool      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (c *Client) CreateComment(ctx context.Context, comment *Comment) error {
	if err := c.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		log.Error("failed to create comment", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetCommentByID(ctx context.Context, id uint) (*Comment, error) {
	var comment Comment
	if err := c.db.WithContext(ctx).Preload("Author").Preload("Post").First(&comment, id).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get comment by ID", "error", err)
		}
		return nil, err
	}
	return &comment, nil
}

// GetPostComments returns the comments of a post, newest first.
func (c *Client) GetPostComments(ctx context.Context, postID uint, approvedOnly bool) ([]Comment, error) {
	q := c.db.WithContext(ctx).Preload("Author").Where("post_id = ?", postID)
	if approvedOnly {
		q = q.Where("approved = ?", true)
	}
	var comments []Comment
	if err := q.Order("created_at DESC, id DESC").Find(&comments).Error; err != nil {
		log.Error("failed to get post comments", "post_id", postID, "error", err)
		return nil, err
	}
	return comments, nil
}

func (c *Client) ListComments(ctx context.Context, filter CommentFilter, page Page) (*Paged[Comment], error) {
	res, err := paginate[Comment](filter.apply(ctx, c.db), page, "comments.created_at DESC, comments.id DESC", "Author", "Post")
	if err != nil {
		log.Error("failed to list comments", "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Client) GetRecentComments(ctx context.Context, limit int) ([]Comment, error) {
	var comments []Comment
	if err := c.db.WithContext(ctx).
		Preload("Author").
		Preload("Post").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&comments).Error; err != nil {
		log.Error("failed to get recent comments", "error", err)
		return nil, err
	}
	return comments, nil
}

func (c *Client) ApproveComment(ctx context.Context, id uint) error {
	res := c.db.WithContext(ctx).Model(&Comment{}).Where("id = ?", id).Update("approved", true)
	if res.Error != nil {
		log.Error("failed to approve comment", "comment_id", id, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (c *Client) DeleteComment(ctx context.Context, id uint) error {
	res := c.db.WithContext(ctx).Delete(&Comment{}, id)
	if res.Error != nil {
		log.Error("failed to delete comment", "comment_id", id, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAllComments removes every comment and returns how many were deleted.
func (c *Client) DeleteAllComments(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Comment{})
	if res.Error != nil {
		log.Error("failed to delete all comments", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (c *Client) CountComments(ctx context.Context, since *time.Time) (int64, error) {
	q := c.db.WithContext(ctx).Model(&Comment{})
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		log.Error("failed to count comments", "error", err)
		return 0, err
	}
	return count, nil
}
