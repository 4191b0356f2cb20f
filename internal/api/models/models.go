package models

import "time"

// Flash is a one-shot message stored in the session.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// CurrentUser is the logged in user shown in the page chrome.
type CurrentUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	IsStaff  bool   `json:"isStaff"`
	Avatar   string `json:"avatar,omitempty"`
}

// Site is the public part of the site settings.
type Site struct {
	Name              string `json:"name"`
	Tagline           string `json:"tagline"`
	Description       string `json:"description,omitempty"`
	ContactEmail      string `json:"contactEmail,omitempty"`
	AllowComments     bool   `json:"allowComments"`
	AllowRegistration bool   `json:"allowRegistration"`
	ShowAuthor        bool   `json:"showAuthor"`
}

// Settings is the full site settings form.
type Settings struct {
	Site
	PostsPerPage     int       `json:"postsPerPage"`
	ExcerptLength    int       `json:"excerptLength"`
	ModerateComments bool      `json:"moderateComments"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Author is the public identity of a user.
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
}

type CategoryRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type TagRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type PostRef struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// PostSummary is a post in a listing.
type PostSummary struct {
	ID           uint         `json:"id"`
	Title        string       `json:"title"`
	Slug         string       `json:"slug"`
	Excerpt      string       `json:"excerpt"`
	Status       string       `json:"status"`
	Author       *Author      `json:"author,omitempty"`
	Category     *CategoryRef `json:"category,omitempty"`
	Tags         []TagRef     `json:"tags"`
	CommentCount int64        `json:"commentCount"`
	LikeCount    int64        `json:"likeCount"`
	Liked        bool         `json:"liked"`
	CreatedAt    time.Time    `json:"createdAt"`
	CreatedAgo   string       `json:"createdAgo"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// PostDetail is the post page.
type PostDetail struct {
	PostSummary
	Content      string        `json:"content"`
	Comments     []CommentView `json:"comments"`
	UserHasLiked bool          `json:"userHasLiked"`
	CanEdit      bool          `json:"canEdit"`
}

// PostForm prefills the post editor.
type PostForm struct {
	ID         uint          `json:"id,omitempty"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	Status     string        `json:"status"`
	CategoryID *uint         `json:"categoryId,omitempty"`
	Tags       string        `json:"tags"`
	Categories []CategoryRef `json:"categories"`
}

type CommentView struct {
	ID         uint      `json:"id"`
	Post       PostRef   `json:"post"`
	Author     *Author   `json:"author,omitempty"`
	Content    string    `json:"content"`
	Approved   bool      `json:"approved"`
	CreatedAt  time.Time `json:"createdAt"`
	CreatedAgo string    `json:"createdAgo"`
}

type LikeView struct {
	ID         uint      `json:"id"`
	Post       PostRef   `json:"post"`
	User       *Author   `json:"user,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	CreatedAgo string    `json:"createdAgo"`
}

type CategoryView struct {
	CategoryRef
	PostCount   int64     `json:"postCount"`
	RecentPosts []PostRef `json:"recentPosts,omitempty"`
}

type TagView struct {
	TagRef
	PostCount int64 `json:"postCount"`
}

// Counts holds the activity counters of a user.
type Counts struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Likes    int64 `json:"likes"`
}

// Profile is the caller's own profile.
type Profile struct {
	Author
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	DateJoined         time.Time  `json:"dateJoined"`
	JoinedAgo          string     `json:"joinedAgo"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	Bio                string     `json:"bio"`
	Location           string     `json:"location"`
	Website            string     `json:"website"`
	Twitter            string     `json:"twitter"`
	GitHub             string     `json:"github"`
	LinkedIn           string     `json:"linkedin"`
	EmailNotifications bool       `json:"emailNotifications"`
	Counts             Counts     `json:"counts"`
}

// UserRow is a user in the admin listing.
type UserRow struct {
	Author
	Email       string     `json:"email"`
	IsStaff     bool       `json:"isStaff"`
	IsSuperuser bool       `json:"isSuperuser"`
	DateJoined  time.Time  `json:"dateJoined"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	Counts      Counts     `json:"counts"`
}

// Pagination describes the current page of a listing.
type Pagination struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
	Total      int64  `json:"total"`
	TotalText  string `json:"totalText"`
	HasNext    bool   `json:"hasNext"`
	HasPrev    bool   `json:"hasPrev"`
}

// Storage is the humanized disk usage of the database directory.
type Storage struct {
	Path        string  `json:"path"`
	Total       string  `json:"total"`
	Used        string  `json:"used"`
	Free        string  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}
