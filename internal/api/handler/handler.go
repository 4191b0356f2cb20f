package handler

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/thoughtnest/thoughtnest/internal/api/auth"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

const converterKey = "converter"

type Handler struct {
	svc *blog.Service
}

func New(svc *blog.Service) *Handler {
	return &Handler{svc: svc}
}

// converter returns the view converter for the current site settings,
// built once per request.
func (h *Handler) converter(c *gin.Context) *models.Converter {
	if v, ok := c.Get(converterKey); ok {
		return v.(*models.Converter)
	}
	settings, err := h.svc.Settings(c.Request.Context())
	if err != nil {
		log.Error("Failed to load site settings, using defaults", "error", err)
	}
	conv := models.NewConverter(h.svc.Avatars(), settings)
	c.Set(converterKey, conv)
	return conv
}

// render writes a page view with the shared site, user and flash data.
func (h *Handler) render(c *gin.Context, page string, data gin.H) {
	conv := h.converter(c)
	body := gin.H{
		"page":    page,
		"site":    conv.Site(),
		"user":    conv.CurrentUser(auth.CurrentUser(c)),
		"flashes": auth.Flashes(c),
	}
	maps.Copy(body, data)
	c.JSON(http.StatusOK, body)
}

// fail flashes the error and redirects. Permission failures always go home.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	msg, known := blog.UserMessage(err)
	if !known {
		log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	target := fallback
	if blog.IsPermission(err) {
		target = "/"
	}
	auth.AddFlash(c, auth.FlashError, msg)
	redirect(c, target)
}

func (h *Handler) succeed(c *gin.Context, level, msg, target string) {
	auth.AddFlash(c, level, msg)
	redirect(c, target)
}

// redirect saves the session once and sends a 302.
func redirect(c *gin.Context, target string) {
	if err := auth.Save(c); err != nil {
		log.Error("Failed to save session", "error", err)
	}
	c.Redirect(http.StatusFound, target)
}

func parseUintParam(param string) (uint, error) {
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Convert[uint](id)
}

// idParam parses the :id path parameter. On failure it flashes and redirects to fallback.
func (h *Handler) idParam(c *gin.Context, fallback string) (uint, bool) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil || id == 0 {
		h.succeed(c, auth.FlashError, "Invalid id.", fallback)
		return 0, false
	}
	return id, true
}

// optionalID parses an optional numeric filter; anything invalid means no filter.
func optionalID(raw string) *uint {
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil
	}
	id, err := parseUintParam(raw)
	if err != nil || id == 0 {
		return nil
	}
	return &id
}

// pageQuery returns the requested page number. Non-numeric values mean page 1.
func pageQuery(c *gin.Context) int {
	raw := c.Query("page")
	if raw == "" {
		return 1
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 1
	}
	page, err := safecast.Convert[int](n)
	if err != nil {
		return 1
	}
	return page
}

// dateQuery parses a YYYY-MM-DD query parameter in local time.
func dateQuery(c *gin.Context, key string) *time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return nil
	}
	return &t
}

func postStatusQuery(c *gin.Context) database.PostStatus {
	status := database.PostStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if !status.Valid() {
		return ""
	}
	return status
}

// filters echoes the listing filters back to the view.
func filters(c *gin.Context, keys ...string) gin.H {
	out := gin.H{}
	for _, k := range keys {
		out[k] = c.Query(k)
	}
	return out
}

// checkbox reports whether an HTML checkbox value is ticked.
func checkbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func postURL(id uint) string {
	return fmt.Sprintf("/posts/%d", id)
}

// Healthz reports whether the database is reachable.
func (h *Handler) Healthz(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		log.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
