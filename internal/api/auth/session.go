package auth

import (
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

const (
	// SessionName is the name of the session cookie.
	SessionName = "thoughtnest_session"

	sessionUserID = "user_id"
	contextUser   = "user"
	contextDirty  = "session_dirty"
)

// Flash levels.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashError   = "error"
)

var flashLevels = []string{FlashSuccess, FlashInfo, FlashError}

// Login stores the user in a fresh session. The cookie is written by Save.
func Login(c *gin.Context, user *database.User) {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, user.ID)
	c.Set(contextUser, user)
	markDirty(c)
}

// Logout clears the session. The cookie is written by Save.
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	c.Set(contextUser, nil)
	markDirty(c)
}

// Save writes the session cookie if anything changed during the request.
// Call it once, before the response headers are sent.
func Save(c *gin.Context) error {
	if !c.GetBool(contextDirty) {
		return nil
	}
	c.Set(contextDirty, false)
	return sessions.Default(c).Save()
}

func markDirty(c *gin.Context) {
	c.Set(contextDirty, true)
}

// CurrentUser returns the logged in user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *database.User {
	if v, ok := c.Get(contextUser); ok {
		if user, ok := v.(*database.User); ok {
			return user
		}
	}
	return nil
}

// AddFlash queues a message for the next rendered page. The cookie is written by Save.
func AddFlash(c *gin.Context, level, message string) {
	sessions.Default(c).AddFlash(message, flashKey(level))
	markDirty(c)
}

// Flashes pops all queued messages.
func Flashes(c *gin.Context) []models.Flash {
	session := sessions.Default(c)
	var out []models.Flash
	for _, level := range flashLevels {
		for _, v := range session.Flashes(flashKey(level)) {
			if msg, ok := v.(string); ok {
				out = append(out, models.Flash{Level: level, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		markDirty(c)
	}
	if err := Save(c); err != nil {
		log.Error("Failed to save session", "error", err)
	}
	return out
}

func flashKey(level string) string {
	return "_flash_" + level
}

// SafeNext returns next if it is a path on this site, otherwise fallback.
func SafeNext(next, fallback string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}

// LoginURL returns the login page that sends the user back to path afterwards.
func LoginURL(path string) string {
	return "/login?next=" + url.QueryEscape(path)
}
