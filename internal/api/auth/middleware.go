package auth

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/thoughtnest/thoughtnest/internal/blog"
)

// LoadUser resolves the session user for every request. Sessions pointing at
// a deleted user are cleared.
func LoadUser(svc *blog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		raw := session.Get(sessionUserID)
		if raw == nil {
			c.Next()
			return
		}
		userID, ok := raw.(uint)
		if !ok {
			session.Delete(sessionUserID)
			markDirty(c)
			c.Next()
			return
		}

		user, err := svc.GetUser(c.Request.Context(), userID)
		switch {
		case err == nil:
			c.Set(contextUser, user)
		case blog.IsNotFound(err):
			log.Debug("Session user no longer exists", "user_id", userID)
			session.Delete(sessionUserID)
			markDirty(c)
		default:
			log.Error("Failed to load session user", "user_id", userID, "error", err)
		}
		c.Next()
	}
}

// RequireAuth redirects anonymous requests to the login page.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff sends non-staff users back to the home page with a message.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			AddFlash(c, FlashError, "You do not have permission to access this page.")
			if err := Save(c); err != nil {
				log.Error("Failed to save session", "error", err)
			}
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnonymous sends logged in users to the home page.
func RequireAnonymous() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
