package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thoughtnest/thoughtnest/internal/database"
)

// ErrInjected is the default error returned by a failing method.
var ErrInjected = errors.New("mock: injected failure")

// MockDB wraps a database.DB and lets tests make selected methods fail.
// Methods without an injected error pass through to the wrapped database.
type MockDB struct {
	database.DB

	mu    sync.RWMutex
	errs  map[string]error
	calls map[string]int
}

var _ database.DB = (*MockDB)(nil)

// New wraps db.
func New(db database.DB) *MockDB {
	return &MockDB{
		DB:    db,
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// FailOn makes method return err until Reset is called. A nil err means ErrInjected.
func (m *MockDB) FailOn(method string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

// Reset removes every injected error and clears the call counters.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = make(map[string]error)
	m.calls = make(map[string]int)
}

// Calls returns how often method was called.
func (m *MockDB) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

func (m *MockDB) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.errs[method]
}

func (m *MockDB) GetUserByID(ctx context.Context, id uint) (*database.User, error) {
	if err := m.record("GetUserByID"); err != nil {
		return nil, err
	}
	return m.DB.GetUserByID(ctx, id)
}

func (m *MockDB) CreateUser(ctx context.Context, user *database.User, profile *database.Profile) error {
	if err := m.record("CreateUser"); err != nil {
		return err
	}
	return m.DB.CreateUser(ctx, user, profile)
}

func (m *MockDB) CreatePost(ctx context.Context, post *database.Post, tagNames []string) error {
	if err := m.record("CreatePost"); err != nil {
		return err
	}
	return m.DB.CreatePost(ctx, post, tagNames)
}

func (m *MockDB) CreateComment(ctx context.Context, comment *database.Comment) error {
	if err := m.record("CreateComment"); err != nil {
		return err
	}
	return m.DB.CreateComment(ctx, comment)
}

func (m *MockDB) AddLike(ctx context.Context, postID, userID uint) (bool, error) {
	if err := m.record("AddLike"); err != nil {
		return false, err
	}
	return m.DB.AddLike(ctx, postID, userID)
}

func (m *MockDB) GetSiteSettings(ctx context.Context) (*database.SiteSettings, error) {
	if err := m.record("GetSiteSettings"); err != nil {
		return nil, err
	}
	return m.DB.GetSiteSettings(ctx)
}

func (m *MockDB) SaveSiteSettings(ctx context.Context, settings *database.SiteSettings) error {
	if err := m.record("SaveSiteSettings"); err != nil {
		return err
	}
	return m.DB.SaveSiteSettings(ctx, settings)
}

func (m *MockDB) CountPosts(ctx context.Context, status database.PostStatus, since *time.Time) (int64, error) {
	if err := m.record("CountPosts"); err != nil {
		return 0, err
	}
	return m.DB.CountPosts(ctx, status, since)
}

func (m *MockDB) ListCategoriesWithCounts(ctx context.Context, publishedOnly bool, limit int) ([]database.CategoryCount, error) {
	if err := m.record("ListCategoriesWithCounts"); err != nil {
		return nil, err
	}
	return m.DB.ListCategoriesWithCounts(ctx, publishedOnly, limit)
}

func (m *MockDB) Ping(ctx context.Context) error {
	if err := m.record("Ping"); err != nil {
		return err
	}
	return m.DB.Ping(ctx)
}
