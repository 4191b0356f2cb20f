package database

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User represents a registered account.
// Every user owns exactly one Profile, created in the same transaction.
type User struct {
	ID           uint      `gorm:"primarykey"`
	Username     string    `gorm:"size:150;uniqueIndex;not null"`
	Email        string    `gorm:"size:254;uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	FirstName    string    `gorm:"size:150"`
	LastName     string    `gorm:"size:150"`
	IsStaff      bool      `gorm:"not null"`
	IsSuperuser  bool      `gorm:"not null"`
	DateJoined   time.Time `gorm:"not null;index"`
	LastLogin    *time.Time
	UpdatedAt    time.Time
	Profile      *Profile `gorm:"constraint:OnDelete:CASCADE;"`
}

// BeforeSave stores the email trimmed and lowercased.
func (u *User) BeforeSave(*gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// IsAdmin reports whether the user may access staff-only pages.
func (u *User) IsAdmin() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// FullName returns the first and last name, or the username if both are empty.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Profile holds the public details and preferences of a user.
type Profile struct {
	ID                 uint   `gorm:"primarykey"`
	UserID             uint   `gorm:"uniqueIndex;not null"`
	Bio                string `gorm:"size:500"`
	Location           string `gorm:"size:100"`
	Website            string `gorm:"size:200"`
	Twitter            string `gorm:"size:100"`
	GitHub             string `gorm:"column:github;size:100"`
	LinkedIn           string `gorm:"column:linkedin;size:100"`
	EmailNotifications bool   `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewProfile returns a profile with default preferences.
func NewProfile() *Profile {
	return &Profile{EmailNotifications: true}
}

// UserCounts holds the activity counters of a user.
type UserCounts struct {
	Posts    int64
	Comments int64
	Likes    int64
}

// UserScore is a user ranked by the number of posts written.
type UserScore struct {
	User  User
	Posts int64
}

// CreateUser inserts the user and its profile in a single transaction.
func (c *Client) CreateUser(ctx context.Context, user *User, profile *Profile) error {
	if profile == nil {
		profile = NewProfile()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if err != nil {
		if !IsDuplicate(err) {
			log.Error("failed to create user", "error", err)
		}
		return err
	}
	user.Profile = profile
	return nil
}

func (c *Client) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get user by ID", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Preload("Profile").Where("username = ?", username).First(&user).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get user by username", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		log.Error("failed to check username", "error", err)
		return false, err
	}
	return count > 0, nil
}

// EmailExists reports whether another account than excludeUserID uses the email.
// Emails compare case-insensitively.
func (c *Client) EmailExists(ctx context.Context, email string, excludeUserID uint) (bool, error) {
	var count int64
	q := c.db.WithContext(ctx).Model(&User{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if excludeUserID != 0 {
		q = q.Where("id <> ?", excludeUserID)
	}
	if err := q.Count(&count).Error; err != nil {
		log.Error("failed to check email", "error", err)
		return false, err
	}
	return count > 0, nil
}

// UpdateUser saves the account columns of the user. The profile is left untouched.
func (c *Client) UpdateUser(ctx context.Context, user *User) error {
	if err := c.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error; err != nil {
		if !IsDuplicate(err) {
			log.Error("failed to update user", "error", err)
		}
		return err
	}
	return nil
}

func (c *Client) UpdateProfile(ctx context.Context, profile *Profile) error {
	if err := c.db.WithContext(ctx).Save(profile).Error; err != nil {
		log.Error("failed to update profile", "error", err)
		return err
	}
	return nil
}

func (c *Client) SetLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return c.updateUserColumn(ctx, userID, "last_login", at)
}

func (c *Client) SetPasswordHash(ctx context.Context, userID uint, hash string) error {
	return c.updateUserColumn(ctx, userID, "password_hash", hash)
}

func (c *Client) SetStaff(ctx context.Context, userID uint, staff bool) error {
	return c.updateUserColumn(ctx, userID, "is_staff", staff)
}

func (c *Client) updateUserColumn(ctx context.Context, userID uint, column string, value any) error {
	res := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update(column, value)
	if res.Error != nil {
		log.Error("failed to update user", "column", column, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUser removes the user together with its profile, likes and posts.
// Comments the user wrote on other posts are kept without an author.
func (c *Client) DeleteUser(ctx context.Context, userID uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownPosts := func() *gorm.DB {
			return tx.Model(&Post{}).Select("id").Where("author_id = ?", userID)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (?)", ownPosts()).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (?)", ownPosts()).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id IN (?)", ownPosts()).Error; err != nil {
			return err
		}
		if err := tx.Model(&Comment{}).Where("author_id = ?", userID).Update("author_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", userID).Delete(&Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&Profile{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&User{}, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && !IsNotFound(err) {
		log.Error("failed to delete user", "user_id", userID, "error", err)
	}
	return err
}

func (c *Client) ListUsers(ctx context.Context, filter UserFilter, page Page) (*Paged[User], error) {
	res, err := paginate[User](filter.apply(ctx, c.db), page, "date_joined DESC, id DESC", "Profile")
	if err != nil {
		log.Error("failed to list users", "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Client) GetRecentUsers(ctx context.Context, limit int) ([]User, error) {
	var users []User
	if err := c.db.WithContext(ctx).Order("date_joined DESC, id DESC").Limit(limit).Find(&users).Error; err != nil {
		log.Error("failed to get recent users", "error", err)
		return nil, err
	}
	return users, nil
}

func (c *Client) CountUsers(ctx context.Context, since *time.Time) (int64, error) {
	q := c.db.WithContext(ctx).Model(&User{})
	if since != nil {
		q = q.Where("date_joined >= ?", *since)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		log.Error("failed to count users", "error", err)
		return 0, err
	}
	return count, nil
}

type idCount struct {
	ID    uint
	Total int64
}

func (c *Client) countBy(ctx context.Context, model any, column string, ids []uint, where ...any) (map[uint]int64, error) {
	var rows []idCount
	q := c.db.WithContext(ctx).Model(model).
		Select(column+" AS id, COUNT(*) AS total").
		Where(column+" IN ?", ids)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	if err := q.Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Total
	}
	return out, nil
}

// GetUserCounts returns post, comment and like counts keyed by user ID.
func (c *Client) GetUserCounts(ctx context.Context, userIDs []uint) (map[uint]UserCounts, error) {
	out := make(map[uint]UserCounts, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	posts, err := c.countBy(ctx, &Post{}, "author_id", userIDs)
	if err != nil {
		log.Error("failed to count posts per user", "error", err)
		return nil, err
	}
	comments, err := c.countBy(ctx, &Comment{}, "author_id", userIDs)
	if err != nil {
		log.Error("failed to count comments per user", "error", err)
		return nil, err
	}
	likes, err := c.countBy(ctx, &Like{}, "user_id", userIDs)
	if err != nil {
		log.Error("failed to count likes per user", "error", err)
		return nil, err
	}
	for _, id := range userIDs {
		out[id] = UserCounts{Posts: posts[id], Comments: comments[id], Likes: likes[id]}
	}
	return out, nil
}

// GetTopAuthors returns the users with the most posts.
func (c *Client) GetTopAuthors(ctx context.Context, limit int) ([]UserScore, error) {
	var rows []idCount
	if err := c.db.WithContext(ctx).Model(&Post{}).
		Select("author_id AS id, COUNT(*) AS total").
		Group("author_id").
		Order("total DESC, author_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		log.Error("failed to get top authors", "error", err)
		return nil, err
	}
	if len(rows) == 0 {
		return []UserScore{}, nil
	}

	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var users []User
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		log.Error("failed to load top authors", "error", err)
		return nil, err
	}
	byID := make(map[uint]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	scores := make([]UserScore, 0, len(rows))
	for _, r := range rows {
		if u, ok := byID[r.ID]; ok {
			scores = append(scores, UserScore{User: u, Posts: r.Total})
		}
	}
	return scores, nil
}
