package blog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

const maxCategoryNameLength = 120

// CreateCategory adds a category. A name that already exists is rejected.
func (s *Service) CreateCategory(ctx context.Context, actor *database.User, name string) (*database.Category, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("Category name is required.")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return nil, validationf("Category name must be at most %d characters.", maxCategoryNameLength)
	}

	category, created, err := s.db.GetOrCreateCategory(ctx, name)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, validationf("Category %q already exists.", name)
	}
	log.Info("Created category", "category_id", category.ID, "name", name, "by", actor.Username)
	return category, nil
}

// DeleteCategory removes a category. Its posts become uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, actor *database.User, categoryID uint) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.db.DeleteCategory(ctx, categoryID); err != nil {
		return wrapNotFound(err, "Category", categoryID)
	}
	log.Info("Deleted category", "category_id", categoryID, "by", actor.Username)
	return nil
}

// DeleteTag removes a tag from all posts.
func (s *Service) DeleteTag(ctx context.Context, actor *database.User, tagID uint) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.db.DeleteTag(ctx, tagID); err != nil {
		return wrapNotFound(err, "Tag", tagID)
	}
	log.Info("Deleted tag", "tag_id", tagID, "by", actor.Username)
	return nil
}
