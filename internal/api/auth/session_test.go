package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

func TestSafeNext(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{name: "empty", next: "", want: "/fallback"},
		{name: "local path", next: "/posts/1", want: "/posts/1"},
		{name: "local path with query", next: "/profile/likes?page=2", want: "/profile/likes?page=2"},
		{name: "absolute url", next: "https://evil.example.com/", want: "/fallback"},
		{name: "protocol relative", next: "//evil.example.com", want: "/fallback"},
		{name: "backslash trick", next: "/\\evil.example.com", want: "/fallback"},
		{name: "relative path", next: "posts/1", want: "/fallback"},
		{name: "javascript", next: "javascript:alert(1)", want: "/fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeNext(tt.next, "/fallback"))
		})
	}
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login?next=%2Fposts%2Fnew", LoginURL("/posts/new"))
}

type SessionTestSuite struct {
	suite.Suite
	router *gin.Engine
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	store := cookie.NewStore([]byte("test-secret-key"))
	s.router.Use(sessions.Sessions(SessionName, store))
}

func (s *SessionTestSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func sessionCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionName {
			out = append(out, c)
		}
	}
	return out
}

func (s *SessionTestSuite) TestFlashesArePoppedOnce() {
	s.router.POST("/flash", func(c *gin.Context) {
		AddFlash(c, FlashSuccess, "saved")
		AddFlash(c, FlashError, "but also failed")
		s.NoError(Save(c))
		c.Status(http.StatusNoContent)
	})
	var got [][]models.Flash
	s.router.GET("/read", func(c *gin.Context) {
		got = append(got, Flashes(c))
		c.Status(http.StatusNoContent)
	})

	w := s.serve(httptest.NewRequest(http.MethodPost, "/flash", nil))
	cookies := sessionCookies(w)
	s.Require().Len(cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = s.serve(req)

	req = httptest.NewRequest(http.MethodGet, "/read", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	s.serve(req)

	s.Require().Len(sessionCookies(w), 1)

	req = httptest.NewRequest(http.MethodGet, "/read", nil)
	for _, c := range sessionCookies(w) {
		req.AddCookie(c)
	}
	w = s.serve(req)
	s.Empty(sessionCookies(w))

	s.Require().Len(got, 3)
	s.Equal([]models.Flash{
		{Level: FlashSuccess, Message: "saved"},
		{Level: FlashError, Message: "but also failed"},
	}, got[0])
	s.Empty(got[1])
	s.Empty(got[2])
}

func (s *SessionTestSuite) TestSaveWritesCookieOnlyWhenChanged() {
	s.router.GET("/noop", func(c *gin.Context) {
		s.NoError(Save(c))
		c.Status(http.StatusNoContent)
	})
	s.router.POST("/login", func(c *gin.Context) {
		Login(c, &database.User{ID: 7, Username: "alice"})
		AddFlash(c, FlashSuccess, "Welcome back, alice!")
		s.NoError(Save(c))
		s.NoError(Save(c))
		c.Status(http.StatusNoContent)
	})

	w := s.serve(httptest.NewRequest(http.MethodGet, "/noop", nil))
	s.Empty(sessionCookies(w))

	w = s.serve(httptest.NewRequest(http.MethodPost, "/login", nil))
	s.Len(sessionCookies(w), 1)
}

func (s *SessionTestSuite) TestRequireAuthRedirectsWithNext() {
	s.router.GET("/private", RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := s.serve(httptest.NewRequest(http.MethodGet, "/private?tab=drafts", nil))
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login?next=%2Fprivate%3Ftab%3Ddrafts", w.Header().Get("Location"))
}

func (s *SessionTestSuite) TestRequireStaff() {
	var user *database.User
	s.router.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(contextUser, user)
		}
		c.Next()
	})
	s.router.GET("/admin", RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := s.serve(httptest.NewRequest(http.MethodGet, "/admin", nil))
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/login?next=%2Fadmin", w.Header().Get("Location"))

	user = &database.User{Username: "alice"}
	w = s.serve(httptest.NewRequest(http.MethodGet, "/admin", nil))
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/", w.Header().Get("Location"))
	s.Len(sessionCookies(w), 1)

	user = &database.User{Username: "root", IsStaff: true}
	w = s.serve(httptest.NewRequest(http.MethodGet, "/admin", nil))
	s.Equal(http.StatusOK, w.Code)
}
