package handler

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/thoughtnest/thoughtnest/internal/api/auth"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

type registerForm struct {
	Username  string `form:"username"`
	Email     string `form:"email"`
	Password1 string `form:"password1"`
	Password2 string `form:"password2"`
	FirstName string `form:"first_name"`
	LastName  string `form:"last_name"`
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

type profileForm struct {
	Action             string `form:"action"`
	FirstName          string `form:"first_name"`
	LastName           string `form:"last_name"`
	Email              string `form:"email"`
	Bio                string `form:"bio"`
	Location           string `form:"location"`
	Website            string `form:"website"`
	Twitter            string `form:"twitter"`
	GitHub             string `form:"github"`
	LinkedIn           string `form:"linkedin"`
	EmailNotifications string `form:"email_notifications"`
	OldPassword        string `form:"old_password"`
	NewPassword1       string `form:"new_password1"`
	NewPassword2       string `form:"new_password2"`
}

// RegisterPage shows the registration form.
func (h *Handler) RegisterPage(c *gin.Context) {
	settings, err := h.svc.Settings(c.Request.Context())
	if err != nil {
		h.fail(c, err, "/")
		return
	}
	if !settings.AllowRegistration {
		h.fail(c, blog.ErrRegistrationDisabled, "/")
		return
	}
	h.render(c, "register", nil)
}

// Register creates the account and logs the user in.
func (h *Handler) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		h.succeed(c, auth.FlashError, "Invalid form submission.", "/register")
		return
	}

	user, err := h.svc.Register(c.Request.Context(), blog.RegisterInput{
		Username:        form.Username,
		Email:           form.Email,
		Password:        form.Password1,
		PasswordConfirm: form.Password2,
		FirstName:       form.FirstName,
		LastName:        form.LastName,
	})
	if err != nil {
		target := "/register"
		if errors.Is(err, blog.ErrRegistrationDisabled) {
			target = "/"
		}
		h.fail(c, err, target)
		return
	}
	auth.Login(c, user)
	h.succeed(c, auth.FlashSuccess, fmt.Sprintf("Account created successfully! Welcome, %s!", user.Username), "/")
}

// LoginPage shows the login form.
func (h *Handler) LoginPage(c *gin.Context) {
	h.render(c, "login", gin.H{"next": auth.SafeNext(c.Query("next"), "")})
}

// Login checks the credentials and starts a session.
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)
	next := auth.SafeNext(form.Next, auth.SafeNext(c.Query("next"), "/"))

	retry := "/login"
	if next != "/" {
		retry = auth.LoginURL(next)
	}
	if form.Username == "" || form.Password == "" {
		h.succeed(c, auth.FlashError, "Both username and password are required.", retry)
		return
	}

	user, err := h.svc.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		h.fail(c, err, retry)
		return
	}
	auth.Login(c, user)
	log.Info("User logged in", "username", user.Username)
	h.succeed(c, auth.FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.Username), next)
}

// Logout ends the session.
func (h *Handler) Logout(c *gin.Context) {
	auth.Logout(c)
	h.succeed(c, auth.FlashInfo, "You have been logged out successfully.", "/")
}

// Profile shows the caller's profile with activity counters and recent posts.
func (h *Handler) Profile(c *gin.Context) {
	user := auth.CurrentUser(c)
	page, err := h.svc.Profile(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err, "/")
		return
	}
	conv := h.converter(c)
	h.render(c, "profile", gin.H{
		"profile":     conv.Profile(page.User, page.Counts),
		"recentPosts": conv.PostRefs(page.RecentPosts),
	})
}

// ProfileSettingsPage shows the profile and password forms.
func (h *Handler) ProfileSettingsPage(c *gin.Context) {
	user := auth.CurrentUser(c)
	h.render(c, "profile_settings", gin.H{
		"profile": h.converter(c).Profile(user, database.UserCounts{}),
	})
}

// ProfileSettings handles both forms of the settings page, selected by action.
func (h *Handler) ProfileSettings(c *gin.Context) {
	user := auth.CurrentUser(c)
	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		h.succeed(c, auth.FlashError, "Invalid form submission.", "/profile-settings")
		return
	}

	switch form.Action {
	case "update_profile":
		_, err := h.svc.UpdateProfile(c.Request.Context(), user.ID, blog.ProfileInput{
			FirstName:          form.FirstName,
			LastName:           form.LastName,
			Email:              form.Email,
			Bio:                form.Bio,
			Location:           form.Location,
			Website:            form.Website,
			Twitter:            form.Twitter,
			GitHub:             form.GitHub,
			LinkedIn:           form.LinkedIn,
			EmailNotifications: checkbox(form.EmailNotifications),
		})
		if err != nil {
			h.fail(c, err, "/profile-settings")
			return
		}
		h.succeed(c, auth.FlashSuccess, "Profile updated successfully!", "/profile-settings")
	case "change_password":
		err := h.svc.ChangePassword(c.Request.Context(), user.ID, blog.ChangePasswordInput{
			OldPassword:     form.OldPassword,
			NewPassword:     form.NewPassword1,
			ConfirmPassword: form.NewPassword2,
		})
		if err != nil {
			h.fail(c, err, "/profile-settings")
			return
		}
		h.succeed(c, auth.FlashSuccess, "Password changed successfully!", "/profile-settings")
	default:
		h.succeed(c, auth.FlashError, "Unknown action.", "/profile-settings")
	}
}

// MyComments lists the caller's comments.
func (h *Handler) MyComments(c *gin.Context) {
	user := auth.CurrentUser(c)
	comments, err := h.svc.MyComments(c.Request.Context(), user, blog.MyCommentsQuery{
		Query:     c.Query("q"),
		PostID:    optionalID(c.Query("post")),
		DateRange: database.ParseDateRange(c.Query("date_range")),
		Page:      pageQuery(c),
	})
	if err != nil {
		h.fail(c, err, "/profile")
		return
	}
	conv := h.converter(c)
	h.render(c, "my_comments", gin.H{
		"comments":   conv.Comments(comments.Items),
		"pagination": models.ToPagination(comments),
		"filters":    filters(c, "q", "post", "date_range"),
	})
}

// DeleteMyComment deletes one of the caller's comments.
func (h *Handler) DeleteMyComment(c *gin.Context) {
	id, ok := h.idParam(c, "/profile/comments")
	if !ok {
		return
	}
	if err := h.svc.DeleteOwnComment(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		h.fail(c, err, "/profile/comments")
		return
	}
	h.succeed(c, auth.FlashSuccess, "Comment deleted successfully!", "/profile/comments")
}

// MyLikes lists the posts the caller liked.
func (h *Handler) MyLikes(c *gin.Context) {
	user := auth.CurrentUser(c)
	likes, err := h.svc.MyLikes(c.Request.Context(), user, blog.MyLikesQuery{
		Query:     c.Query("q"),
		DateRange: database.ParseDateRange(c.Query("date_range")),
		Page:      pageQuery(c),
	})
	if err != nil {
		h.fail(c, err, "/profile")
		return
	}
	h.render(c, "my_likes", gin.H{
		"likes":      h.converter(c).Likes(likes.Items),
		"pagination": models.ToPagination(likes),
		"filters":    filters(c, "q", "date_range"),
	})
}
