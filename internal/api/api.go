package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thoughtnest/thoughtnest/internal/api/auth"
	"github.com/thoughtnest/thoughtnest/internal/api/handler"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/config"
)

const (
	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	svc       *blog.Service
}

func New(cfg *config.Config, svc *blog.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("blog service is required")
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		svc:       svc,
	}
	s.ginEngine.Use(gin.Recovery(), requestLogger(), gzip.Gzip(gzip.DefaultCompression))
	s.setupSession()
	s.ginEngine.Use(auth.LoadUser(svc))
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(auth.SessionName, store))
}

func (s *Server) setupRoutes() {
	h := handler.New(s.svc)
	r := s.ginEngine

	r.GET("/healthz", h.Healthz)

	anonymous := r.Group("/", auth.RequireAnonymous())
	anonymous.GET("/register", h.RegisterPage)
	anonymous.POST("/register", h.Register)
	anonymous.GET("/login", h.LoginPage)
	anonymous.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	r.GET("/", h.Home)
	r.GET("/categories", h.Categories)
	r.GET("/category/:id", h.CategoryPosts)
	r.GET("/tag/:id", h.TagPosts)
	r.GET("/posts/:id", h.PostDetail)

	protected := r.Group("/", auth.RequireAuth())
	protected.GET("/posts/new", h.NewPostPage)
	protected.POST("/posts/new", h.CreatePost)
	protected.GET("/posts/manage", h.ManagePosts)
	protected.GET("/posts/:id/edit", h.EditPostPage)
	protected.POST("/posts/:id/edit", h.EditPost)
	protected.POST("/posts/:id/delete", h.DeletePost)
	protected.POST("/posts/:id/comment", h.Comment)
	protected.POST("/posts/:id/like", h.Like)

	protected.GET("/profile", h.Profile)
	protected.GET("/profile-settings", h.ProfileSettingsPage)
	protected.POST("/profile-settings", h.ProfileSettings)
	protected.GET("/profile/comments", h.MyComments)
	protected.POST("/profile/comments/:id/delete", h.DeleteMyComment)
	protected.GET("/profile/likes", h.MyLikes)

	s.setupAdminRoutes(h)
}

func (s *Server) setupAdminRoutes(h *handler.Handler) {
	r := s.ginEngine
	r.GET("/admin-page", auth.RequireStaff(), h.AdminPage)
	r.GET("/admin-dashboard", auth.RequireStaff(), h.Dashboard)

	admin := r.Group("/admin", auth.RequireStaff())
	admin.GET("/posts", h.AdminPosts)
	admin.GET("/comments", h.AdminComments)
	admin.POST("/comments/purge", h.PurgeComments)
	admin.POST("/comments/:id/delete", h.AdminDeleteComment)
	admin.POST("/comments/:id/approve", h.ApproveComment)
	admin.GET("/likes", h.AdminLikes)
	admin.GET("/tags", h.AdminTags)
	admin.POST("/tag/:id/delete", h.DeleteTag)
	admin.GET("/categories", h.AdminCategories)
	admin.GET("/category/create", h.CategoryCreatePage)
	admin.POST("/category/create", h.CreateCategory)
	admin.POST("/category/:id/delete", h.DeleteCategory)
	admin.GET("/settings", h.SettingsPage)
	admin.POST("/settings", h.UpdateSettings)
	admin.GET("/users-manage", h.AdminUsers)
	admin.POST("/users/:id/delete", h.DeleteUser)
	admin.POST("/users/:id/staff", h.SetStaff)

	admin.GET("/scheduler", h.Scheduler)
	admin.POST("/scheduler/jobs/:id/run", h.RunJob)
	admin.POST("/scheduler/jobs/:id/enable", h.EnableJob)
	admin.POST("/scheduler/jobs/:id/disable", h.DisableJob)
	admin.POST("/scheduler/cache/clear", h.ClearCache)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}

// requestLogger tags every request with an id and logs it once it completes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		c.Next()

		log.Debug("Request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
