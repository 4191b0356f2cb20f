package handler

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/thoughtnest/thoughtnest/internal/api/auth"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

type postForm struct {
	Title      string `form:"title"`
	Content    string `form:"content"`
	Status     string `form:"status"`
	CategoryID string `form:"category"`
	Tags       string `form:"tags"`
}

func (f postForm) input() blog.PostInput {
	return blog.PostInput{
		Title:      f.Title,
		Content:    f.Content,
		Status:     f.Status,
		CategoryID: optionalID(f.CategoryID),
		Tags:       blog.ParseTags(f.Tags),
	}
}

// Home lists the published posts with the most used categories.
func (h *Handler) Home(c *gin.Context) {
	home, err := h.svc.Home(c.Request.Context(), auth.CurrentUser(c), pageQuery(c))
	if err != nil {
		// every failure redirect lands here, so answer directly instead of looping
		log.Error("Failed to load home page", "error", err)
		msg, _ := blog.UserMessage(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}
	h.render(c, "home", gin.H{
		"posts":          h.converter(c).PostSummaries(home.Posts.Items),
		"pagination":     models.ToPagination(home.Posts),
		"topCategories":  models.ToCategoryViews(home.TopCategories),
		"totalPublished": home.TotalPublished,
	})
}

// Categories lists every category with its newest posts, and every tag.
func (h *Handler) Categories(c *gin.Context) {
	page, err := h.svc.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "/")
		return
	}
	h.render(c, "categories", gin.H{
		"categories": h.converter(c).CategoryOverviews(page.Categories),
		"tags":       models.ToTagViews(page.Tags),
	})
}

// CategoryPosts lists the published posts of one category.
func (h *Handler) CategoryPosts(c *gin.Context) {
	id, ok := h.idParam(c, "/categories")
	if !ok {
		return
	}
	page, err := h.svc.CategoryPosts(c.Request.Context(), auth.CurrentUser(c), id, pageQuery(c))
	if err != nil {
		h.fail(c, err, "/categories")
		return
	}
	h.render(c, "category_posts", gin.H{
		"category":   models.ToCategoryRef(page.Category),
		"posts":      h.converter(c).PostSummaries(page.Posts.Items),
		"pagination": models.ToPagination(page.Posts),
	})
}

// TagPosts lists the published posts of one tag.
func (h *Handler) TagPosts(c *gin.Context) {
	id, ok := h.idParam(c, "/categories")
	if !ok {
		return
	}
	page, err := h.svc.TagPosts(c.Request.Context(), auth.CurrentUser(c), id, pageQuery(c))
	if err != nil {
		h.fail(c, err, "/categories")
		return
	}
	tag := models.ToTagRefs([]database.Tag{*page.Tag})[0]
	h.render(c, "tag_posts", gin.H{
		"tag":        tag,
		"posts":      h.converter(c).PostSummaries(page.Posts.Items),
		"pagination": models.ToPagination(page.Posts),
	})
}

// PostDetail shows a post with its approved comments.
func (h *Handler) PostDetail(c *gin.Context) {
	id, ok := h.idParam(c, "/")
	if !ok {
		return
	}
	detail, err := h.svc.GetPost(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err, "/")
		return
	}
	h.render(c, "post_detail", gin.H{
		"post": h.converter(c).PostDetail(detail),
	})
}

// NewPostPage shows an empty post form.
func (h *Handler) NewPostPage(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "/")
		return
	}
	h.render(c, "post_form", gin.H{
		"form": h.converter(c).PostForm(nil, categories),
	})
}

// CreatePost saves a new post authored by the caller.
func (h *Handler) CreatePost(c *gin.Context) {
	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		h.succeed(c, auth.FlashError, "Invalid form submission.", "/posts/new")
		return
	}
	post, err := h.svc.CreatePost(c.Request.Context(), auth.CurrentUser(c), form.input())
	if err != nil {
		h.fail(c, err, "/posts/new")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Post created successfully!", postURL(post.ID))
}

// EditPostPage shows the post form filled with the current values.
func (h *Handler) EditPostPage(c *gin.Context) {
	id, ok := h.idParam(c, "/posts/manage")
	if !ok {
		return
	}
	post, err := h.svc.GetEditablePost(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err, postURL(id))
		return
	}
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, postURL(id))
		return
	}
	h.render(c, "post_form", gin.H{
		"form": h.converter(c).PostForm(post, categories),
	})
}

// EditPost saves the post form.
func (h *Handler) EditPost(c *gin.Context) {
	id, ok := h.idParam(c, "/posts/manage")
	if !ok {
		return
	}
	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		h.succeed(c, auth.FlashError, "Invalid form submission.", fmt.Sprintf("/posts/%d/edit", id))
		return
	}
	post, err := h.svc.EditPost(c.Request.Context(), auth.CurrentUser(c), id, form.input())
	if err != nil {
		fallback := fmt.Sprintf("/posts/%d/edit", id)
		if blog.IsNotFound(err) {
			fallback = "/posts/manage"
		}
		h.fail(c, err, fallback)
		return
	}
	h.succeed(c, auth.FlashSuccess, "Post updated successfully!", postURL(post.ID))
}

// DeletePost removes a post. Staff return to the admin listing, authors to their profile.
func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := h.idParam(c, "/posts/manage")
	if !ok {
		return
	}
	user := auth.CurrentUser(c)
	if err := h.svc.DeletePost(c.Request.Context(), user, id); err != nil {
		h.fail(c, err, "/posts/manage")
		return
	}
	target := "/profile"
	if user.IsAdmin() {
		target = "/admin/posts"
	}
	h.succeed(c, auth.FlashSuccess, "Post deleted successfully!", target)
}

// Comment adds a comment to a post.
func (h *Handler) Comment(c *gin.Context) {
	id, ok := h.idParam(c, "/")
	if !ok {
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), auth.CurrentUser(c), id, c.PostForm("content"))
	if err != nil {
		fallback := postURL(id)
		if blog.IsNotFound(err) {
			fallback = "/"
		}
		h.fail(c, err, fallback)
		return
	}
	msg := "Comment added."
	if !comment.Approved {
		msg = "Comment submitted and awaiting approval."
	}
	h.succeed(c, auth.FlashSuccess, msg, postURL(id))
}

// Like toggles the caller's like and returns to next or the post.
func (h *Handler) Like(c *gin.Context) {
	id, ok := h.idParam(c, "/")
	if !ok {
		return
	}
	target := auth.SafeNext(c.PostForm("next"), postURL(id))
	liked, err := h.svc.ToggleLike(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		fallback := target
		if blog.IsNotFound(err) {
			fallback = "/"
		}
		h.fail(c, err, fallback)
		return
	}
	if liked {
		h.succeed(c, auth.FlashSuccess, "You liked the post.", target)
		return
	}
	h.succeed(c, auth.FlashInfo, "Like removed.", target)
}

// ManagePosts lists the caller's own posts, drafts included.
func (h *Handler) ManagePosts(c *gin.Context) {
	user := auth.CurrentUser(c)
	posts, err := h.svc.ManagePosts(c.Request.Context(), user, blog.ManagePostsQuery{
		Query:      c.Query("q"),
		CategoryID: optionalID(c.Query("category")),
		Status:     postStatusQuery(c),
		DateRange:  database.ParseDateRange(c.Query("date_range")),
		OrderBy:    c.Query("order_by"),
		Page:       pageQuery(c),
	})
	if err != nil {
		h.fail(c, err, "/profile")
		return
	}
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "/profile")
		return
	}
	h.render(c, "manage_posts", gin.H{
		"posts":      h.converter(c).AdminPostSummaries(posts.Items),
		"pagination": models.ToPagination(posts),
		"categories": models.ToCategoryRefs(categories),
		"filters":    filters(c, "q", "category", "status", "date_range", "order_by"),
	})
}
