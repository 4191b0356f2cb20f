package blog

import (
	"context"

	"github.com/thoughtnest/thoughtnest/internal/database"
)

// ToggleLike flips the like of user on a post and reports whether the post is now liked.
// An insert that loses a race against the same user's concurrent toggle counts as liked.
func (s *Service) ToggleLike(ctx context.Context, user *database.User, postID uint) (bool, error) {
	if user == nil {
		return false, permissionf("You must be logged in to like posts.")
	}
	post, err := s.db.GetPostByID(ctx, postID)
	if err != nil {
		return false, wrapNotFound(err, "Post", postID)
	}
	if post.Status != database.PostStatusPublished && !canManage(user, post) {
		return false, notFound("Post", postID)
	}

	liked, err := s.db.HasLiked(ctx, postID, user.ID)
	if err != nil {
		return false, err
	}
	if liked {
		if _, err := s.db.RemoveLike(ctx, postID, user.ID); err != nil {
			return false, err
		}
		return false, nil
	}
	if _, err := s.db.AddLike(ctx, postID, user.ID); err != nil {
		return false, err
	}
	return true, nil
}
