package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/thoughtnest/thoughtnest/internal/api/auth"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

type identityForm struct {
	SiteName        string `form:"site_name"`
	SiteTagline     string `form:"site_tagline"`
	SiteDescription string `form:"site_description"`
	ContactEmail    string `form:"contact_email"`
}

type policyForm struct {
	PostsPerPage      int    `form:"posts_per_page"`
	ExcerptLength     int    `form:"excerpt_length"`
	AllowComments     string `form:"allow_comments"`
	ModerateComments  string `form:"moderate_comments"`
	AllowRegistration string `form:"allow_registration"`
	ShowAuthor        string `form:"show_author"`
}

// AdminPage is the legacy admin entry point.
func (h *Handler) AdminPage(c *gin.Context) {
	c.Redirect(http.StatusFound, "/admin-dashboard")
}

// Dashboard shows the aggregated site statistics.
func (h *Handler) Dashboard(c *gin.Context) {
	dashboard, err := h.svc.Dashboard(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err, "/")
		return
	}
	h.render(c, "admin_dashboard", gin.H{
		"dashboard": dashboard,
		"storage":   models.ToStorage(dashboard.Storage),
	})
}

// AdminPosts lists every post with author, category, status and date filters.
func (h *Handler) AdminPosts(c *gin.Context) {
	user := auth.CurrentUser(c)
	posts, err := h.svc.AdminPosts(c.Request.Context(), user, blog.AdminPostsQuery{
		Query:      c.Query("q"),
		AuthorID:   optionalID(c.Query("author")),
		CategoryID: optionalID(c.Query("category")),
		Status:     postStatusQuery(c),
		DateRange:  database.ParseDateRange(c.Query("date_range")),
		Page:       pageQuery(c),
	})
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_posts", gin.H{
		"posts":      h.converter(c).AdminPostSummaries(posts.Items),
		"pagination": models.ToPagination(posts),
		"categories": models.ToCategoryRefs(categories),
		"filters":    filters(c, "q", "author", "category", "status", "date_range"),
	})
}

func (h *Handler) activityQuery(c *gin.Context) blog.AdminActivityQuery {
	return blog.AdminActivityQuery{
		UserID:    optionalID(c.Query("user")),
		PostID:    optionalID(c.Query("post")),
		DateRange: database.ParseDateRange(c.Query("date_range")),
		Page:      pageQuery(c),
	}
}

// AdminComments lists every comment, approved or not.
func (h *Handler) AdminComments(c *gin.Context) {
	comments, err := h.svc.AdminComments(c.Request.Context(), auth.CurrentUser(c), h.activityQuery(c))
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_comments", gin.H{
		"comments":   h.converter(c).Comments(comments.Items),
		"pagination": models.ToPagination(comments),
		"filters":    filters(c, "user", "post", "date_range"),
	})
}

// AdminDeleteComment removes any comment.
func (h *Handler) AdminDeleteComment(c *gin.Context) {
	id, ok := h.idParam(c, "/admin/comments")
	if !ok {
		return
	}
	if err := h.svc.AdminDeleteComment(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		h.fail(c, err, "/admin/comments")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Comment deleted successfully!", "/admin/comments")
}

// ApproveComment publishes a moderated comment.
func (h *Handler) ApproveComment(c *gin.Context) {
	id, ok := h.idParam(c, "/admin/comments")
	if !ok {
		return
	}
	if err := h.svc.ApproveComment(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		h.fail(c, err, "/admin/comments")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Comment approved.", "/admin/comments")
}

// PurgeComments deletes every comment on the site.
func (h *Handler) PurgeComments(c *gin.Context) {
	n, err := h.svc.PurgeComments(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err, "/admin/comments")
		return
	}
	h.succeed(c, auth.FlashSuccess, fmt.Sprintf("Deleted %d comments.", n), "/admin/comments")
}

// AdminLikes lists every like.
func (h *Handler) AdminLikes(c *gin.Context) {
	likes, err := h.svc.AdminLikes(c.Request.Context(), auth.CurrentUser(c), h.activityQuery(c))
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_likes", gin.H{
		"likes":      h.converter(c).Likes(likes.Items),
		"pagination": models.ToPagination(likes),
		"filters":    filters(c, "user", "post", "date_range"),
	})
}

// AdminTags lists every tag with its post count.
func (h *Handler) AdminTags(c *gin.Context) {
	tags, err := h.svc.AdminTags(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_tags", gin.H{"tags": models.ToTagViews(tags)})
}

// DeleteTag removes a tag from every post and deletes it.
func (h *Handler) DeleteTag(c *gin.Context) {
	id, ok := h.idParam(c, "/admin/tags")
	if !ok {
		return
	}
	if err := h.svc.DeleteTag(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		h.fail(c, err, "/admin/tags")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Tag deleted successfully!", "/admin/tags")
}

// AdminCategories lists every category with its post count.
func (h *Handler) AdminCategories(c *gin.Context) {
	categories, err := h.svc.AdminCategories(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_categories", gin.H{"categories": models.ToCategoryViews(categories)})
}

// CategoryCreatePage shows the category form.
func (h *Handler) CategoryCreatePage(c *gin.Context) {
	h.render(c, "category_create", nil)
}

// CreateCategory adds a category.
func (h *Handler) CreateCategory(c *gin.Context) {
	_, err := h.svc.CreateCategory(c.Request.Context(), auth.CurrentUser(c), c.PostForm("name"))
	if err != nil {
		h.fail(c, err, "/admin/category/create")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Category created successfully!", "/admin/categories")
}

// DeleteCategory deletes a category. Its posts become uncategorized.
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := h.idParam(c, "/admin/categories")
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		h.fail(c, err, "/admin/categories")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Category deleted successfully!", "/admin/categories")
}

// SettingsPage shows both settings groups.
func (h *Handler) SettingsPage(c *gin.Context) {
	h.render(c, "admin_settings", gin.H{"settings": h.converter(c).Settings()})
}

// UpdateSettings saves one settings group, selected by action.
func (h *Handler) UpdateSettings(c *gin.Context) {
	user := auth.CurrentUser(c)
	ctx := c.Request.Context()

	switch c.PostForm("action") {
	case "identity":
		var form identityForm
		if err := c.ShouldBind(&form); err != nil {
			h.succeed(c, auth.FlashError, "Invalid form submission.", "/admin/settings")
			return
		}
		_, err := h.svc.UpdateIdentity(ctx, user, blog.IdentityInput{
			SiteName:        form.SiteName,
			SiteTagline:     form.SiteTagline,
			SiteDescription: form.SiteDescription,
			ContactEmail:    form.ContactEmail,
		})
		if err != nil {
			h.fail(c, err, "/admin/settings")
			return
		}
	case "policy":
		var form policyForm
		if err := c.ShouldBind(&form); err != nil {
			h.succeed(c, auth.FlashError, "Posts per page and excerpt length must be numbers.", "/admin/settings")
			return
		}
		_, err := h.svc.UpdatePolicy(ctx, user, blog.PolicyInput{
			PostsPerPage:      form.PostsPerPage,
			ExcerptLength:     form.ExcerptLength,
			AllowComments:     checkbox(form.AllowComments),
			ModerateComments:  checkbox(form.ModerateComments),
			AllowRegistration: checkbox(form.AllowRegistration),
			ShowAuthor:        checkbox(form.ShowAuthor),
		})
		if err != nil {
			h.fail(c, err, "/admin/settings")
			return
		}
	default:
		h.succeed(c, auth.FlashError, "Unknown action.", "/admin/settings")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Settings updated successfully!", "/admin/settings")
}

// AdminUsers lists the registered users with their activity counters.
func (h *Handler) AdminUsers(c *gin.Context) {
	users, err := h.svc.AdminUsers(c.Request.Context(), auth.CurrentUser(c), blog.AdminUsersQuery{
		Query:      c.Query("q"),
		JoinedFrom: dateQuery(c, "joined_from"),
		JoinedTo:   dateQuery(c, "joined_to"),
		Page:       pageQuery(c),
	})
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_users", gin.H{
		"users":      h.converter(c).UserRows(users.Items),
		"pagination": models.ToPagination(users),
		"filters":    filters(c, "q", "joined_from", "joined_to"),
	})
}

// DeleteUser removes a user together with everything they wrote.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := h.idParam(c, "/admin/users-manage")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := auth.CurrentUser(c)
	target, err := h.svc.GetUser(ctx, id)
	if err != nil {
		h.fail(c, err, "/admin/users-manage")
		return
	}
	if err := h.svc.DeleteUser(ctx, user, id); err != nil {
		h.fail(c, err, "/admin/users-manage")
		return
	}
	h.succeed(c, auth.FlashSuccess, fmt.Sprintf("User %s has been deleted.", target.Username), "/admin/users-manage")
}

// SetStaff grants or revokes the staff flag.
func (h *Handler) SetStaff(c *gin.Context) {
	id, ok := h.idParam(c, "/admin/users-manage")
	if !ok {
		return
	}
	staff := checkbox(c.PostForm("staff"))
	if err := h.svc.SetStaff(c.Request.Context(), auth.CurrentUser(c), id, staff); err != nil {
		h.fail(c, err, "/admin/users-manage")
		return
	}
	msg := "Staff access revoked."
	if staff {
		msg = "Staff access granted."
	}
	h.succeed(c, auth.FlashSuccess, msg, "/admin/users-manage")
}

// Scheduler shows the background jobs and cache statistics.
func (h *Handler) Scheduler(c *gin.Context) {
	state, err := h.svc.Scheduler(auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err, "/admin-dashboard")
		return
	}
	h.render(c, "admin_scheduler", gin.H{
		"jobs":  state.Jobs,
		"cache": state.Cache,
	})
}

// RunJob triggers a job immediately.
func (h *Handler) RunJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.svc.TriggerJob(auth.CurrentUser(c), id); err != nil {
		h.fail(c, err, "/admin/scheduler")
		return
	}
	h.succeed(c, auth.FlashSuccess, fmt.Sprintf("Job %s triggered.", id), "/admin/scheduler")
}

// EnableJob resumes the schedule of a job.
func (h *Handler) EnableJob(c *gin.Context) {
	h.setJobEnabled(c, true)
}

// DisableJob pauses the schedule of a job.
func (h *Handler) DisableJob(c *gin.Context) {
	h.setJobEnabled(c, false)
}

func (h *Handler) setJobEnabled(c *gin.Context, enabled bool) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.svc.SetJobEnabled(auth.CurrentUser(c), id, enabled); err != nil {
		h.fail(c, err, "/admin/scheduler")
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	h.succeed(c, auth.FlashSuccess, fmt.Sprintf("Job %s %s.", id, state), "/admin/scheduler")
}

// ClearCache drops the cached settings and dashboard.
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.svc.InvalidateCaches(c.Request.Context(), auth.CurrentUser(c)); err != nil {
		h.fail(c, err, "/admin/scheduler")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Caches cleared.", "/admin/scheduler")
}
