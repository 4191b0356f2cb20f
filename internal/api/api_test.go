package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/thoughtnest/thoughtnest/internal/api/models"
	"github.com/thoughtnest/thoughtnest/internal/blog"
	"github.com/thoughtnest/thoughtnest/internal/config"
	"github.com/thoughtnest/thoughtnest/internal/database"
	"github.com/thoughtnest/thoughtnest/internal/database/mock"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse"

type ServerTestSuite struct {
	suite.Suite
	cfg    *config.Config
	db     *database.Client
	svc    *blog.Service
	server *httptest.Server
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	dir := s.T().TempDir()
	cfg := &config.Config{
		Listen:        "127.0.0.1:0",
		SessionKey:    "0123456789abcdef0123456789abcdef",
		SessionMaxAge: 3600,
		Database: &config.DatabaseConfig{
			Driver: config.DatabaseDriverSQLite,
			Path:   filepath.Join(dir, "api.db"),
		},
		Cache:    &config.CacheConfig{Type: config.CacheTypeMemory, DashboardTTL: 60},
		Gravatar: &config.GravatarConfig{Enabled: false},
		Admin:    &config.AdminConfig{Username: "root", Email: "root@example.com", Password: testPassword},
		Jobs:     &config.JobsConfig{},
	}
	s.cfg = cfg

	db, err := database.New(cfg.Database)
	s.Require().NoError(err)
	s.db = db

	svc, err := blog.New(cfg, db, blog.WithPasswordCost(bcrypt.MinCost))
	s.Require().NoError(err)
	s.Require().NoError(svc.Init(context.Background()))
	s.svc = svc

	srv, err := New(cfg, svc)
	s.Require().NoError(err)
	s.server = httptest.NewServer(srv.Handler())
}

func (s *ServerTestSuite) TearDownTest() {
	s.server.Close()
	_ = s.svc.Close()
	_ = s.db.Close()
}

// client returns a browser-like client with its own cookie jar that does not follow redirects.
func (s *ServerTestSuite) client() *http.Client {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *ServerTestSuite) get(client *http.Client, path string) (*http.Response, map[string]json.RawMessage) {
	resp, err := client.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	var body map[string]json.RawMessage
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

// post submits a form and returns the redirect target.
func (s *ServerTestSuite) post(client *http.Client, path string, form url.Values) string {
	resp, err := client.PostForm(s.server.URL+path, form)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusFound, resp.StatusCode, "POST %s", path)
	return resp.Header.Get("Location")
}

func (s *ServerTestSuite) flashes(body map[string]json.RawMessage) []models.Flash {
	var flashes []models.Flash
	if raw, ok := body["flashes"]; ok {
		s.Require().NoError(json.Unmarshal(raw, &flashes))
	}
	return flashes
}

func (s *ServerTestSuite) postDetail(client *http.Client, id uint) models.PostDetail {
	resp, body := s.get(client, fmt.Sprintf("/posts/%d", id))
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var detail models.PostDetail
	s.Require().NoError(json.Unmarshal(body["post"], &detail))
	return detail
}

func (s *ServerTestSuite) register(username string) *http.Client {
	client := s.client()
	location := s.post(client, "/register", url.Values{
		"username":  {username},
		"email":     {username + "@example.com"},
		"password1": {testPassword},
		"password2": {testPassword},
	})
	s.Require().Equal("/", location)
	return client
}

func (s *ServerTestSuite) login(username string) *http.Client {
	client := s.client()
	location := s.post(client, "/login", url.Values{"username": {username}, "password": {testPassword}})
	s.Require().Equal("/", location)
	return client
}

func (s *ServerTestSuite) TestHealthz() {
	resp, body := s.get(s.client(), "/healthz")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`"ok"`, string(body["status"]))
	s.NotEmpty(resp.Header.Get(requestIDHeader))
}

func (s *ServerTestSuite) TestHealthzReportsDatabaseFailure() {
	db := mock.New(s.db)
	svc, err := blog.New(s.cfg, db, blog.WithPasswordCost(bcrypt.MinCost))
	s.Require().NoError(err)
	s.Require().NoError(svc.Init(context.Background()))
	defer svc.Close() //nolint:errcheck
	srv, err := New(s.cfg, svc)
	s.Require().NoError(err)

	db.FailOn("Ping", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal(1, db.Calls("Ping"))
}

func (s *ServerTestSuite) TestHomeFailureDoesNotRedirect() {
	db := mock.New(s.db)
	svc, err := blog.New(s.cfg, db, blog.WithPasswordCost(bcrypt.MinCost))
	s.Require().NoError(err)
	s.Require().NoError(svc.Init(context.Background()))
	defer svc.Close() //nolint:errcheck
	srv, err := New(s.cfg, svc)
	s.Require().NoError(err)

	db.FailOn("ListCategoriesWithCounts", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal(http.StatusInternalServerError, w.Code)
	s.Empty(w.Header().Get("Location"))

	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("Something went wrong. Please try again.", body["error"])
}

func (s *ServerTestSuite) TestRegisterLogsInWithWelcomeFlash() {
	alice := s.register("alice")

	resp, body := s.get(alice, "/")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var user models.CurrentUser
	s.Require().NoError(json.Unmarshal(body["user"], &user))
	s.Equal("alice", user.Username)
	s.Contains(s.flashes(body), models.Flash{Level: "success", Message: "Account created successfully! Welcome, alice!"})

	_, body = s.get(alice, "/")
	s.Empty(s.flashes(body))
}

func (s *ServerTestSuite) TestRegisterValidationRedirectsBack() {
	client := s.client()
	location := s.post(client, "/register", url.Values{
		"username":  {"bob"},
		"email":     {"bob@example.com"},
		"password1": {testPassword},
		"password2": {"something-else"},
	})
	s.Equal("/register", location)

	_, body := s.get(client, "/register")
	s.Contains(s.flashes(body), models.Flash{Level: "error", Message: "Passwords do not match."})
}

func (s *ServerTestSuite) TestAnonymousIsSentToLogin() {
	resp, _ := s.get(s.client(), "/profile/comments?page=2")
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/login?next="+url.QueryEscape("/profile/comments?page=2"), resp.Header.Get("Location"))
}

func (s *ServerTestSuite) TestLoginHonoursLocalNext() {
	s.register("alice")

	client := s.client()
	location := s.post(client, "/login?next=/profile", url.Values{"username": {"alice"}, "password": {testPassword}})
	s.Equal("/profile", location)

	client = s.client()
	location = s.post(client, "/login", url.Values{
		"username": {"alice"},
		"password": {testPassword},
		"next":     {"https://evil.example.com/"},
	})
	s.Equal("/", location)
}

func (s *ServerTestSuite) TestLoginFailureIsGeneric() {
	s.register("alice")
	client := s.client()

	location := s.post(client, "/login", url.Values{"username": {"alice"}, "password": {"wrong-password"}})
	s.Equal("/login", location)
	_, body := s.get(client, "/login")
	s.Contains(s.flashes(body), models.Flash{Level: "error", Message: "Invalid username or password."})
}

func (s *ServerTestSuite) TestLoginWritesSessionCookieOnce() {
	s.register("alice")
	client := s.client()

	resp, err := client.PostForm(s.server.URL+"/login", url.Values{"username": {"alice"}, "password": {testPassword}})
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusFound, resp.StatusCode)

	var sessionCookies int
	for _, c := range resp.Cookies() {
		if c.Name == "thoughtnest_session" {
			sessionCookies++
		}
	}
	s.Equal(1, sessionCookies)

	_, body := s.get(client, "/")
	s.Contains(s.flashes(body), models.Flash{Level: "success", Message: "Welcome back, alice!"})
}

func (s *ServerTestSuite) TestLoggedInUserCannotSeeLogin() {
	alice := s.register("alice")
	resp, _ := s.get(alice, "/login")
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))
}

func (s *ServerTestSuite) TestStaffRoutesRedirectHomeWithFlash() {
	alice := s.register("alice")

	resp, _ := s.get(alice, "/admin-dashboard")
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	_, body := s.get(alice, "/")
	s.Contains(s.flashes(body), models.Flash{Level: "error", Message: "You do not have permission to access this page."})

	location := s.post(alice, "/admin/category/create", url.Values{"name": {"Go"}})
	s.Equal("/", location)
}

func (s *ServerTestSuite) TestStaffDashboard() {
	root := s.login("root")

	resp, _ := s.get(root, "/admin-page")
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/admin-dashboard", resp.Header.Get("Location"))

	resp, body := s.get(root, "/admin-dashboard")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var dashboard blog.Dashboard
	s.Require().NoError(json.Unmarshal(body["dashboard"], &dashboard))
	s.EqualValues(1, dashboard.Totals.Users)
}

func (s *ServerTestSuite) TestCategoryLifecycle() {
	root := s.login("root")

	s.Equal("/admin/categories", s.post(root, "/admin/category/create", url.Values{"name": {"Go"}}))
	s.Equal("/admin/category/create", s.post(root, "/admin/category/create", url.Values{"name": {"Go"}}))

	_, body := s.get(root, "/admin/categories")
	var categories []models.CategoryView
	s.Require().NoError(json.Unmarshal(body["categories"], &categories))
	s.Require().Len(categories, 1)
	s.Equal("Go", categories[0].Name)

	location := s.post(root, fmt.Sprintf("/admin/category/%d/delete", categories[0].ID), nil)
	s.Equal("/admin/categories", location)
}

func (s *ServerTestSuite) TestAliceScenario() {
	alice := s.register("alice")

	location := s.post(alice, "/posts/new", url.Values{
		"title":   {"Hello"},
		"content": {"Hello world"},
		"status":  {"published"},
		"tags":    {"intro, #hello"},
	})
	s.Require().True(strings.HasPrefix(location, "/posts/"), location)
	var id uint
	_, err := fmt.Sscanf(location, "/posts/%d", &id)
	s.Require().NoError(err)

	anonymous := s.client()
	detail := s.postDetail(anonymous, id)
	s.Equal("Hello", detail.Title)
	s.EqualValues(0, detail.CommentCount)
	s.EqualValues(0, detail.LikeCount)
	s.False(detail.CanEdit)
	s.Len(detail.Tags, 2)

	s.Equal(location, s.post(alice, location+"/comment", url.Values{"content": {"Hi"}}))
	s.EqualValues(1, s.postDetail(anonymous, id).CommentCount)

	s.Equal("/", s.post(alice, location+"/like", url.Values{"next": {"/"}}))
	detail = s.postDetail(alice, id)
	s.EqualValues(1, detail.LikeCount)
	s.True(detail.UserHasLiked)
	s.True(detail.CanEdit)

	s.Equal(location, s.post(alice, location+"/like", nil))
	s.EqualValues(0, s.postDetail(anonymous, id).LikeCount)
}

func (s *ServerTestSuite) TestEditByOtherUserIsRejected() {
	alice := s.register("alice")
	location := s.post(alice, "/posts/new", url.Values{"title": {"Hello"}, "content": {"Body"}})

	mallory := s.register("mallory")
	s.Equal("/", s.post(mallory, location+"/edit", url.Values{"title": {"Owned"}, "content": {"Owned"}}))
	s.Equal("/", s.post(mallory, location+"/delete", nil))

	var id uint
	_, err := fmt.Sscanf(location, "/posts/%d", &id)
	s.Require().NoError(err)
	s.Equal("Hello", s.postDetail(s.client(), id).Title)
}

func (s *ServerTestSuite) TestDraftIsHiddenFromOthers() {
	alice := s.register("alice")
	location := s.post(alice, "/posts/new", url.Values{"title": {"Secret"}, "content": {"Body"}, "status": {"draft"}})

	resp, _ := s.get(alice, location)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.get(s.client(), location)
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))
}

func (s *ServerTestSuite) TestProfileSettings() {
	alice := s.register("alice")

	location := s.post(alice, "/profile-settings", url.Values{
		"action":              {"update_profile"},
		"first_name":          {"Alice"},
		"bio":                 {"Writes about Go."},
		"email_notifications": {"on"},
	})
	s.Equal("/profile-settings", location)

	_, body := s.get(alice, "/profile")
	var profile models.Profile
	s.Require().NoError(json.Unmarshal(body["profile"], &profile))
	s.Equal("Alice", profile.FirstName)
	s.Equal("Writes about Go.", profile.Bio)
	s.True(profile.EmailNotifications)

	location = s.post(alice, "/profile-settings", url.Values{
		"action":        {"change_password"},
		"old_password":  {testPassword},
		"new_password1": {"battery-staple"},
		"new_password2": {"battery-staple"},
	})
	s.Equal("/profile-settings", location)

	_, body = s.get(alice, "/profile-settings")
	s.Contains(s.flashes(body), models.Flash{Level: "success", Message: "Password changed successfully!"})
}

func (s *ServerTestSuite) TestLogout() {
	alice := s.register("alice")
	s.Equal("/", s.post(alice, "/logout", nil))

	_, body := s.get(alice, "/")
	s.JSONEq("null", string(body["user"]))
	s.Contains(s.flashes(body), models.Flash{Level: "info", Message: "You have been logged out successfully."})
}
