package blog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

const (
	maxTitleLength   = 200
	maxTagNameLength = 80
)

// PostInput holds the fields of the post form.
type PostInput struct {
	Title   string
	Content string
	// Status is "draft" or "published"; empty means published.
	Status     string
	CategoryID *uint
	Tags       []string
}

// PostDetail is a post with its visible comments and interaction counters.
type PostDetail struct {
	Post         *database.Post
	Comments     []database.Comment
	CommentCount int64
	LikeCount    int64
	UserHasLiked bool
	CanEdit      bool
}

// ParseTags splits a comma separated tag field.
func ParseTags(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims names, strips leading '#', drops empty names and
// duplicates. Order is preserved and matching is case-sensitive.
func NormalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "#"))
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return lo.Uniq(out)
}

func (s *Service) validatePostInput(ctx context.Context, in *PostInput) (database.PostStatus, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return "", validationf("Title and content are required.")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return "", validationf("Title must be at most %d characters.", maxTitleLength)
	}

	status := database.PostStatusPublished
	if in.Status != "" {
		status = database.PostStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		if !status.Valid() {
			return "", validationf("Status must be draft or published.")
		}
	}

	if in.CategoryID != nil {
		if _, err := s.db.GetCategoryByID(ctx, *in.CategoryID); err != nil {
			if database.IsNotFound(err) {
				return "", validationf("Selected category does not exist.")
			}
			return "", err
		}
	}

	in.Tags = NormalizeTags(in.Tags)
	for _, tag := range in.Tags {
		if utf8.RuneCountInString(tag) > maxTagNameLength {
			return "", validationf("Tag names must be at most %d characters.", maxTagNameLength)
		}
	}
	return status, nil
}

// CreatePost creates a post with its tags in one transaction.
func (s *Service) CreatePost(ctx context.Context, author *database.User, in PostInput) (*database.Post, error) {
	if author == nil {
		return nil, permissionf("You must be logged in to write posts.")
	}
	status, err := s.validatePostInput(ctx, &in)
	if err != nil {
		return nil, err
	}

	post := &database.Post{
		AuthorID:   author.ID,
		CategoryID: in.CategoryID,
		Title:      in.Title,
		Content:    in.Content,
		Status:     status,
	}
	if err := s.db.CreatePost(ctx, post, in.Tags); err != nil {
		return nil, err
	}
	post.Author = author
	log.Info("Created post", "post_id", post.ID, "slug", post.Slug, "author", author.Username)
	return post, nil
}

// EditPost replaces the fields and the tag set of a post.
// Only the author or staff may edit.
func (s *Service) EditPost(ctx context.Context, editor *database.User, postID uint, in PostInput) (*database.Post, error) {
	post, err := s.editablePost(ctx, editor, postID, "edit")
	if err != nil {
		return nil, err
	}
	status, err := s.validatePostInput(ctx, &in)
	if err != nil {
		return nil, err
	}

	post.Title = in.Title
	post.Content = in.Content
	post.Status = status
	post.CategoryID = in.CategoryID
	post.Category = nil
	if err := s.db.UpdatePost(ctx, post, in.Tags); err != nil {
		return nil, wrapNotFound(err, "Post", postID)
	}
	log.Info("Edited post", "post_id", post.ID, "by", editor.Username)
	return post, nil
}

// DeletePost removes a post. Only the author or staff may delete.
func (s *Service) DeletePost(ctx context.Context, requester *database.User, postID uint) error {
	if _, err := s.editablePost(ctx, requester, postID, "delete"); err != nil {
		return err
	}
	if err := s.db.DeletePost(ctx, postID); err != nil {
		return wrapNotFound(err, "Post", postID)
	}
	log.Info("Deleted post", "post_id", postID, "by", requester.Username)
	return nil
}

// GetEditablePost returns the post if user may edit it.
func (s *Service) GetEditablePost(ctx context.Context, user *database.User, postID uint) (*database.Post, error) {
	return s.editablePost(ctx, user, postID, "edit")
}

func (s *Service) editablePost(ctx context.Context, user *database.User, postID uint, action string) (*database.Post, error) {
	if user == nil {
		return nil, permissionf("You must be logged in to %s posts.", action)
	}
	post, err := s.db.GetPostByID(ctx, postID)
	if err != nil {
		return nil, wrapNotFound(err, "Post", postID)
	}
	if !canManage(user, post) {
		return nil, permissionf("You do not have permission to %s this post.", action)
	}
	return post, nil
}

func canManage(user *database.User, post *database.Post) bool {
	return user != nil && (post.AuthorID == user.ID || user.IsAdmin())
}

// GetPost returns the post detail page data. Drafts are only visible to their author and staff.
func (s *Service) GetPost(ctx context.Context, viewer *database.User, postID uint) (*PostDetail, error) {
	post, err := s.db.GetPostByID(ctx, postID)
	if err != nil {
		return nil, wrapNotFound(err, "Post", postID)
	}
	if post.Status != database.PostStatusPublished && !canManage(viewer, post) {
		return nil, notFound("Post", postID)
	}

	comments, err := s.db.GetPostComments(ctx, post.ID, true)
	if err != nil {
		return nil, err
	}
	counts, err := s.db.GetPostCounts(ctx, []uint{post.ID}, true)
	if err != nil {
		return nil, err
	}

	detail := &PostDetail{
		Post:         post,
		Comments:     comments,
		CommentCount: counts[post.ID].Comments,
		LikeCount:    counts[post.ID].Likes,
		CanEdit:      canManage(viewer, post),
	}
	if viewer != nil {
		detail.UserHasLiked, err = s.db.HasLiked(ctx, post.ID, viewer.ID)
		if err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// ListCategories returns all categories for the post form.
func (s *Service) ListCategories(ctx context.Context) ([]database.Category, error) {
	return s.db.ListCategories(ctx)
}
