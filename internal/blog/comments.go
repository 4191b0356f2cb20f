package blog

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

// AddComment adds a comment to a published post.
// When moderation is on the comment stays hidden until approved.
func (s *Service) AddComment(ctx context.Context, author *database.User, postID uint, body string) (*database.Comment, error) {
	if author == nil {
		return nil, permissionf("You must be logged in to comment.")
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AllowComments {
		return nil, validationf("Comments are currently disabled.")
	}

	post, err := s.db.GetPostByID(ctx, postID)
	if err != nil {
		return nil, wrapNotFound(err, "Post", postID)
	}
	if post.Status != database.PostStatusPublished && !canManage(author, post) {
		return nil, notFound("Post", postID)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationf("Comment cannot be empty.")
	}

	comment := &database.Comment{
		PostID:   post.ID,
		AuthorID: &author.ID,
		Content:  body,
		Approved: !settings.ModerateComments,
	}
	if err := s.db.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	log.Debug("Added comment", "comment_id", comment.ID, "post_id", post.ID, "approved", comment.Approved)
	return comment, nil
}

// DeleteOwnComment deletes a comment written by user.
func (s *Service) DeleteOwnComment(ctx context.Context, user *database.User, commentID uint) error {
	if user == nil {
		return permissionf("You must be logged in to delete comments.")
	}
	comment, err := s.db.GetCommentByID(ctx, commentID)
	if err != nil {
		return wrapNotFound(err, "Comment", commentID)
	}
	if comment.AuthorID == nil || *comment.AuthorID != user.ID {
		return permissionf("You can only delete your own comments.")
	}
	if err := s.db.DeleteComment(ctx, commentID); err != nil {
		return wrapNotFound(err, "Comment", commentID)
	}
	return nil
}

// AdminDeleteComment deletes any comment.
func (s *Service) AdminDeleteComment(ctx context.Context, actor *database.User, commentID uint) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.db.DeleteComment(ctx, commentID); err != nil {
		return wrapNotFound(err, "Comment", commentID)
	}
	log.Info("Deleted comment", "comment_id", commentID, "by", actor.Username)
	return nil
}

// ApproveComment makes a moderated comment visible.
func (s *Service) ApproveComment(ctx context.Context, actor *database.User, commentID uint) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.db.ApproveComment(ctx, commentID); err != nil {
		return wrapNotFound(err, "Comment", commentID)
	}
	return nil
}

// PurgeComments irreversibly deletes every comment and returns how many were removed.
func (s *Service) PurgeComments(ctx context.Context, actor *database.User) (int64, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	n, err := s.db.DeleteAllComments(ctx)
	if err != nil {
		return 0, err
	}
	log.Warn("Purged all comments", "count", n, "by", actor.Username)
	return n, nil
}
