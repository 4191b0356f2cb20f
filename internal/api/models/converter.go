package models

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/database"
	"github.com/thoughtnest/thoughtnest/internal/gravatar"
)

// Converter turns database rows into view models.
// Author visibility and excerpt length follow the site settings.
type Converter struct {
	avatars  *gravatar.Resolver
	settings *database.SiteSettings
}

func NewConverter(avatars *gravatar.Resolver, settings *database.SiteSettings) *Converter {
	if settings == nil {
		defaults := database.DefaultSiteSettings()
		settings = &defaults
	}
	return &Converter{avatars: avatars, settings: settings}
}

// Excerpt returns the first words of content, marking truncation with an ellipsis.
func Excerpt(content string, words int) string {
	fields := strings.Fields(content)
	if words <= 0 || len(fields) <= words {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:words], " ") + " …"
}

func (c *Converter) Site() Site {
	s := c.settings
	return Site{
		Name:              s.SiteName,
		Tagline:           s.SiteTagline,
		Description:       s.SiteDescription,
		ContactEmail:      s.ContactEmail,
		AllowComments:     s.AllowComments,
		AllowRegistration: s.AllowRegistration,
		ShowAuthor:        s.ShowAuthor,
	}
}

func (c *Converter) Settings() Settings {
	s := c.settings
	return Settings{
		Site:             c.Site(),
		PostsPerPage:     s.PostsPerPage,
		ExcerptLength:    s.ExcerptLength,
		ModerateComments: s.ModerateComments,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (c *Converter) CurrentUser(u *database.User) *CurrentUser {
	if u == nil {
		return nil
	}
	return &CurrentUser{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName(),
		IsStaff:  u.IsAdmin(),
		Avatar:   c.avatars.URL(u.Email),
	}
}

func (c *Converter) Author(u *database.User) *Author {
	if u == nil {
		return nil
	}
	return &Author{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName(),
		Avatar:   c.avatars.URL(u.Email),
	}
}

// publicAuthor hides the author when the site does not show authors.
func (c *Converter) publicAuthor(u *database.User) *Author {
	if !c.settings.ShowAuthor {
		return nil
	}
	return c.Author(u)
}

func ToCategoryRef(cat *database.Category) *CategoryRef {
	if cat == nil {
		return nil
	}
	return &CategoryRef{ID: cat.ID, Name: cat.Name, Slug: cat.Slug}
}

func ToCategoryRefs(categories []database.Category) []CategoryRef {
	return lo.Map(categories, func(cat database.Category, _ int) CategoryRef {
		return *ToCategoryRef(&cat)
	})
}

func ToTagRefs(tags []database.Tag) []TagRef {
	return lo.Map(tags, func(t database.Tag, _ int) TagRef {
		return TagRef{ID: t.ID, Name: t.Name, Slug: t.Slug}
	})
}

func ToPostRef(p *database.Post) PostRef {
	if p == nil {
		return PostRef{}
	}
	return PostRef{ID: p.ID, Title: p.Title, Slug: p.Slug}
}

func (c *Converter) post(p *database.Post, author *Author) PostSummary {
	return PostSummary{
		ID:         p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		Excerpt:    Excerpt(p.Content, c.settings.ExcerptLength),
		Status:     string(p.Status),
		Author:     author,
		Category:   ToCategoryRef(p.Category),
		Tags:       ToTagRefs(p.Tags),
		CreatedAt:  p.CreatedAt,
		CreatedAgo: timediff.TimeDiff(p.CreatedAt),
		UpdatedAt:  p.UpdatedAt,
	}
}

// PostSummaries converts a public listing.
func (c *Converter) PostSummaries(items []blog.PostItem) []PostSummary {
	return lo.Map(items, func(item blog.PostItem, _ int) PostSummary {
		s := c.post(&item.Post, c.publicAuthor(item.Post.Author))
		s.CommentCount = item.Comments
		s.LikeCount = item.Likes
		s.Liked = item.Liked
		return s
	})
}

// AdminPostSummaries converts a staff or owner listing, which always shows the author.
func (c *Converter) AdminPostSummaries(items []blog.PostItem) []PostSummary {
	return lo.Map(items, func(item blog.PostItem, _ int) PostSummary {
		s := c.post(&item.Post, c.Author(item.Post.Author))
		s.CommentCount = item.Comments
		s.LikeCount = item.Likes
		return s
	})
}

func (c *Converter) PostRefs(posts []database.Post) []PostRef {
	return lo.Map(posts, func(p database.Post, _ int) PostRef { return ToPostRef(&p) })
}

func (c *Converter) PostDetail(d *blog.PostDetail) PostDetail {
	summary := c.post(d.Post, c.publicAuthor(d.Post.Author))
	summary.CommentCount = d.CommentCount
	summary.LikeCount = d.LikeCount
	summary.Liked = d.UserHasLiked
	return PostDetail{
		PostSummary:  summary,
		Content:      d.Post.Content,
		Comments:     c.Comments(d.Comments),
		UserHasLiked: d.UserHasLiked,
		CanEdit:      d.CanEdit,
	}
}

func (c *Converter) PostForm(p *database.Post, categories []database.Category) PostForm {
	form := PostForm{
		Status:     string(database.PostStatusPublished),
		Categories: ToCategoryRefs(categories),
	}
	if p != nil {
		form.ID = p.ID
		form.Title = p.Title
		form.Content = p.Content
		form.Status = string(p.Status)
		form.CategoryID = p.CategoryID
		form.Tags = strings.Join(lo.Map(p.Tags, func(t database.Tag, _ int) string { return t.Name }), ", ")
	}
	return form
}

func (c *Converter) Comments(comments []database.Comment) []CommentView {
	return lo.Map(comments, func(cm database.Comment, _ int) CommentView {
		return CommentView{
			ID:         cm.ID,
			Post:       ToPostRef(cm.Post),
			Author:     c.Author(cm.Author),
			Content:    cm.Content,
			Approved:   cm.Approved,
			CreatedAt:  cm.CreatedAt,
			CreatedAgo: timediff.TimeDiff(cm.CreatedAt),
		}
	})
}

func (c *Converter) Likes(likes []database.Like) []LikeView {
	return lo.Map(likes, func(l database.Like, _ int) LikeView {
		return LikeView{
			ID:         l.ID,
			Post:       ToPostRef(l.Post),
			User:       c.Author(l.User),
			CreatedAt:  l.CreatedAt,
			CreatedAgo: timediff.TimeDiff(l.CreatedAt),
		}
	})
}

func ToCategoryViews(categories []database.CategoryCount) []CategoryView {
	return lo.Map(categories, func(cat database.CategoryCount, _ int) CategoryView {
		return CategoryView{CategoryRef: *ToCategoryRef(&cat.Category), PostCount: cat.PostCount}
	})
}

func (c *Converter) CategoryOverviews(categories []blog.CategoryOverview) []CategoryView {
	return lo.Map(categories, func(cat blog.CategoryOverview, _ int) CategoryView {
		return CategoryView{
			CategoryRef: *ToCategoryRef(&cat.Category),
			PostCount:   cat.PostCount,
			RecentPosts: c.PostRefs(cat.RecentPosts),
		}
	})
}

func ToTagViews(tags []database.TagCount) []TagView {
	return lo.Map(tags, func(t database.TagCount, _ int) TagView {
		return TagView{TagRef: TagRef{ID: t.ID, Name: t.Name, Slug: t.Slug}, PostCount: t.PostCount}
	})
}

func ToCounts(counts database.UserCounts) Counts {
	return Counts{Posts: counts.Posts, Comments: counts.Comments, Likes: counts.Likes}
}

func (c *Converter) Profile(u *database.User, counts database.UserCounts) Profile {
	p := Profile{
		Author:     *c.Author(u),
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		DateJoined: u.DateJoined,
		JoinedAgo:  timediff.TimeDiff(u.DateJoined),
		LastLogin:  u.LastLogin,
		Counts:     ToCounts(counts),
	}
	if u.Profile != nil {
		p.Bio = u.Profile.Bio
		p.Location = u.Profile.Location
		p.Website = u.Profile.Website
		p.Twitter = u.Profile.Twitter
		p.GitHub = u.Profile.GitHub
		p.LinkedIn = u.Profile.LinkedIn
		p.EmailNotifications = u.Profile.EmailNotifications
	}
	return p
}

func (c *Converter) UserRows(items []blog.UserItem) []UserRow {
	return lo.Map(items, func(item blog.UserItem, _ int) UserRow {
		return UserRow{
			Author:      *c.Author(&item.User),
			Email:       item.User.Email,
			IsStaff:     item.User.IsStaff,
			IsSuperuser: item.User.IsSuperuser,
			DateJoined:  item.User.DateJoined,
			LastLogin:   item.User.LastLogin,
			Counts:      ToCounts(item.Counts),
		}
	})
}

// ToPagination describes page p of a listing.
func ToPagination[T any](p *database.Paged[T]) Pagination {
	return Pagination{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		Total:      p.Total,
		TotalText:  humanize.Comma(p.Total),
		HasNext:    p.HasNext(),
		HasPrev:    p.HasPrev(),
	}
}

func ToStorage(d *blog.DiskUsage) *Storage {
	if d == nil {
		return nil
	}
	return &Storage{
		Path:        d.Path,
		Total:       humanize.Bytes(d.Total),
		Used:        humanize.Bytes(d.Used),
		Free:        humanize.Bytes(d.Free),
		UsedPercent: d.UsedPercent,
	}
}
