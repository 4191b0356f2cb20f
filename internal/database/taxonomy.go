package database

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Category groups posts. A post has at most one category.
type Category struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"size:120;uniqueIndex;not null"`
	Slug      string `gorm:"size:60;uniqueIndex;not null"`
	CreatedAt time.Time
}

// Tag labels posts. Tags are created on first use.
type Tag struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"size:80;uniqueIndex;not null"`
	Slug      string `gorm:"size:60;uniqueIndex;not null"`
	CreatedAt time.Time
}

// CategoryCount is a category with the number of its posts.
type CategoryCount struct {
	Category  `gorm:"embedded"`
	PostCount int64
}

// TagCount is a tag with the number of its posts.
type TagCount struct {
	Tag       `gorm:"embedded"`
	PostCount int64
}

const maxGetOrCreateAttempts = 5

// GetOrCreateTag returns the tag with the exact name, creating it if needed.
// The bool result reports whether this call created the tag.
func (c *Client) GetOrCreateTag(ctx context.Context, name string) (*Tag, bool, error) {
	tag, created, err := getOrCreateTag(ctx, c.db, name)
	if err != nil {
		log.Error("failed to get or create tag", "name", name, "error", err)
	}
	return tag, created, err
}

func getOrCreateTag(ctx context.Context, db *gorm.DB, name string) (*Tag, bool, error) {
	for attempt := 0; attempt < maxGetOrCreateAttempts; attempt++ {
		var tag Tag
		err := db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
		if err == nil {
			return &tag, false, nil
		}
		if !IsNotFound(err) {
			return nil, false, err
		}

		slug, err := uniqueSlug(ctx, db, &Tag{}, Slugify(name), "tag")
		if err != nil {
			return nil, false, err
		}
		tag = Tag{Name: name, Slug: slug}
		// A concurrent insert of the same name or slug turns into a no-op and the loop re-reads.
		res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tag)
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 1 {
			return &tag, true, nil
		}
	}
	return nil, false, fmt.Errorf("failed to create tag %q after %d attempts", name, maxGetOrCreateAttempts)
}

// GetOrCreateCategory returns the category with the exact name, creating it if needed.
// The bool result reports whether this call created the category.
func (c *Client) GetOrCreateCategory(ctx context.Context, name string) (*Category, bool, error) {
	for attempt := 0; attempt < maxGetOrCreateAttempts; attempt++ {
		category, err := c.GetCategoryByName(ctx, name)
		if err == nil {
			return category, false, nil
		}
		if !IsNotFound(err) {
			return nil, false, err
		}

		slug, err := uniqueSlug(ctx, c.db, &Category{}, Slugify(name), "category")
		if err != nil {
			log.Error("failed to generate category slug", "error", err)
			return nil, false, err
		}
		category = &Category{Name: name, Slug: slug}
		res := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(category)
		if res.Error != nil {
			log.Error("failed to create category", "name", name, "error", res.Error)
			return nil, false, res.Error
		}
		if res.RowsAffected == 1 {
			return category, true, nil
		}
	}
	return nil, false, fmt.Errorf("failed to create category %q after %d attempts", name, maxGetOrCreateAttempts)
}

func (c *Client) GetCategoryByID(ctx context.Context, id uint) (*Category, error) {
	var category Category
	if err := c.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get category by ID", "error", err)
		}
		return nil, err
	}
	return &category, nil
}

func (c *Client) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	var category Category
	if err := c.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get category by name", "error", err)
		}
		return nil, err
	}
	return &category, nil
}

func (c *Client) GetTagByID(ctx context.Context, id uint) (*Tag, error) {
	var tag Tag
	if err := c.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get tag by ID", "error", err)
		}
		return nil, err
	}
	return &tag, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		log.Error("failed to list categories", "error", err)
		return nil, err
	}
	return categories, nil
}

// ListCategoriesWithCounts returns categories ordered by post count, then name.
// A limit <= 0 returns all categories.
func (c *Client) ListCategoriesWithCounts(ctx context.Context, publishedOnly bool, limit int) ([]CategoryCount, error) {
	join := "LEFT JOIN posts ON posts.category_id = categories.id"
	args := []any{}
	if publishedOnly {
		join += " AND posts.status = ?"
		args = append(args, PostStatusPublished)
	}
	q := c.db.WithContext(ctx).Model(&Category{}).
		Select("categories.id, categories.name, categories.slug, categories.created_at, COUNT(posts.id) AS post_count").
		Joins(join, args...).
		Group("categories.id, categories.name, categories.slug, categories.created_at").
		Order("post_count DESC, categories.name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []CategoryCount
	if err := q.Scan(&rows).Error; err != nil {
		log.Error("failed to list categories with counts", "error", err)
		return nil, err
	}
	return rows, nil
}

// ListTagsWithCounts returns tags ordered by post count, then name.
// A limit <= 0 returns all tags.
func (c *Client) ListTagsWithCounts(ctx context.Context, publishedOnly bool, limit int) ([]TagCount, error) {
	join := "LEFT JOIN posts ON posts.id = post_tags.post_id"
	args := []any{}
	if publishedOnly {
		join += " AND posts.status = ?"
		args = append(args, PostStatusPublished)
	}
	q := c.db.WithContext(ctx).Model(&Tag{}).
		Select("tags.id, tags.name, tags.slug, tags.created_at, COUNT(posts.id) AS post_count").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins(join, args...).
		Group("tags.id, tags.name, tags.slug, tags.created_at").
		Order("post_count DESC, tags.name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []TagCount
	if err := q.Scan(&rows).Error; err != nil {
		log.Error("failed to list tags with counts", "error", err)
		return nil, err
	}
	return rows, nil
}

// GetRecentPostsByCategory returns the newest published posts of every category,
// at most perCategory each, keyed by category ID.
func (c *Client) GetRecentPostsByCategory(ctx context.Context, perCategory int) (map[uint][]Post, error) {
	ranked := c.db.Model(&Post{}).
		Select("posts.*, ROW_NUMBER() OVER (PARTITION BY posts.category_id ORDER BY posts.created_at DESC, posts.id DESC) AS rn").
		Where("posts.status = ? AND posts.category_id IS NOT NULL", PostStatusPublished)

	var posts []Post
	if err := c.db.WithContext(ctx).
		Table("(?) AS posts", ranked).
		Where("rn <= ?", perCategory).
		Preload("Author").
		Order("created_at DESC, id DESC").
		Find(&posts).Error; err != nil {
		log.Error("failed to get recent posts by category", "error", err)
		return nil, err
	}

	out := make(map[uint][]Post)
	for _, p := range posts {
		if p.CategoryID == nil {
			continue
		}
		out[*p.CategoryID] = append(out[*p.CategoryID], p)
	}
	return out, nil
}

// DeleteCategory removes the category. Its posts are kept without a category.
func (c *Client) DeleteCategory(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Post{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && !IsNotFound(err) {
		log.Error("failed to delete category", "category_id", id, "error", err)
	}
	return err
}

// DeleteTag removes the tag and unlinks it from all posts.
func (c *Client) DeleteTag(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&Tag{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && !IsNotFound(err) {
		log.Error("failed to delete tag", "tag_id", id, "error", err)
	}
	return err
}

func (c *Client) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Category{}).Count(&count).Error; err != nil {
		log.Error("failed to count categories", "error", err)
		return 0, err
	}
	return count, nil
}

func (c *Client) CountTags(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Tag{}).Count(&count).Error; err != nil {
		log.Error("failed to count tags", "error", err)
		return 0, err
	}
	return count, nil
}
