package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm/clause"
)

// Like records that a user liked a post. A user likes a post at most once.
type Like struct {
	ID        uint      `gorm:"primarykey"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user"`
	Post      *Post     `gorm:"constraint:OnDelete:CASCADE;"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user;index"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt time.Time `gorm:"index"`
}

// AddLike inserts a like. It returns false without error if the like already exists.
func (c *Client) AddLike(ctx context.Context, postID, userID uint) (bool, error) {
	like := Like{PostID: postID, UserID: userID}
	res := c.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&like)
	if res.Error != nil {
		log.Error("failed to add like", "post_id", postID, "user_id", userID, "error", res.Error)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RemoveLike deletes a like. It returns false without error if there was none.
func (c *Client) RemoveLike(ctx context.Context, postID, userID uint) (bool, error) {
	res := c.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&Like{})
	if res.Error != nil {
		log.Error("failed to remove like", "post_id", postID, "user_id", userID, "error", res.Error)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (c *Client) HasLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Like{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&count).Error; err != nil {
		log.Error("failed to check like", "error", err)
		return false, err
	}
	return count > 0, nil
}

// GetLikedPostIDs returns which of postIDs the user has liked.
func (c *Client) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if len(postIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := c.db.WithContext(ctx).Model(&Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		log.Error("failed to get liked posts", "error", err)
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (c *Client) ListLikes(ctx context.Context, filter LikeFilter, page Page) (*Paged[Like], error) {
	res, err := paginate[Like](filter.apply(ctx, c.db), page, "likes.created_at DESC, likes.id DESC", "User", "Post", "Post.Author")
	if err != nil {
		log.Error("failed to list likes", "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Client) CountLikes(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Like{}).Count(&count).Error; err != nil {
		log.Error("failed to count likes", "error", err)
		return 0, err
	}
	return count, nil
}
