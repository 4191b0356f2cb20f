package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/thoughtnest/thoughtnest/internal/config"
)

// DatabaseTestSuite runs every test against a fresh sqlite file.
type DatabaseTestSuite struct {
	suite.Suite
	ctx context.Context
	db  *Client
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func (suite *DatabaseTestSuite) SetupTest() {
	suite.ctx = context.Background()
	db, err := New(&config.DatabaseConfig{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(suite.T().TempDir(), "test.db"),
	})
	suite.Require().NoError(err)
	suite.db = db
}

func (suite *DatabaseTestSuite) TearDownTest() {
	if suite.db != nil {
		_ = suite.db.Close()
	}
}

func (suite *DatabaseTestSuite) createUser(username string) *User {
	user := &User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	suite.Require().NoError(suite.db.CreateUser(suite.ctx, user, nil))
	return user
}

func (suite *DatabaseTestSuite) createPost(author *User, title string, status PostStatus, tags ...string) *Post {
	post := &Post{AuthorID: author.ID, Title: title, Content: "content of " + title, Status: status}
	suite.Require().NoError(suite.db.CreatePost(suite.ctx, post, tags))
	return post
}

func (suite *DatabaseTestSuite) TestCreateUserCreatesProfile() {
	user := suite.createUser("alice")

	loaded, err := suite.db.GetUserByID(suite.ctx, user.ID)
	suite.Require().NoError(err)
	suite.Require().NotNil(loaded.Profile)
	suite.Equal(user.ID, loaded.Profile.UserID)
	suite.True(loaded.Profile.EmailNotifications)
	suite.False(loaded.DateJoined.IsZero())
}

func (suite *DatabaseTestSuite) TestCreateUserDuplicate() {
	suite.createUser("alice")

	dup := &User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
	err := suite.db.CreateUser(suite.ctx, dup, nil)
	suite.Error(err)
	suite.True(IsDuplicate(err))

	var profiles int64
	suite.Require().NoError(suite.db.db.Model(&Profile{}).Count(&profiles).Error)
	suite.Equal(int64(1), profiles)
}

func (suite *DatabaseTestSuite) TestEmailExistsIgnoresCaseAndSelf() {
	alice := suite.createUser("alice")

	exists, err := suite.db.EmailExists(suite.ctx, "ALICE@example.com", 0)
	suite.Require().NoError(err)
	suite.True(exists)

	exists, err = suite.db.EmailExists(suite.ctx, "alice@example.com", alice.ID)
	suite.Require().NoError(err)
	suite.False(exists)
}

func (suite *DatabaseTestSuite) TestEmailUniquenessIgnoresCase() {
	suite.createUser("alice")

	shouting := &User{Username: "alice2", Email: "  ALICE@Example.com ", PasswordHash: "x"}
	err := suite.db.CreateUser(suite.ctx, shouting, nil)
	suite.Require().Error(err)
	suite.True(IsDuplicate(err))

	bob := &User{Username: "bob", Email: "Bob@Example.com", PasswordHash: "x"}
	suite.Require().NoError(suite.db.CreateUser(suite.ctx, bob, nil))
	loaded, err := suite.db.GetUserByID(suite.ctx, bob.ID)
	suite.Require().NoError(err)
	suite.Equal("bob@example.com", loaded.Email)

	loaded.Email = "ALICE@example.com"
	err = suite.db.UpdateUser(suite.ctx, loaded)
	suite.Require().Error(err)
	suite.True(IsDuplicate(err))
}

func (suite *DatabaseTestSuite) TestPostSlugsAreUnique() {
	alice := suite.createUser("alice")
	first := suite.createPost(alice, "Hello World", PostStatusPublished)
	second := suite.createPost(alice, "Hello, World!", PostStatusPublished)
	third := suite.createPost(alice, "hello world", PostStatusDraft)
	empty := suite.createPost(alice, "!!!", PostStatusDraft)

	suite.Equal("hello-world", first.Slug)
	suite.Equal("hello-world-2", second.Slug)
	suite.Equal("hello-world-3", third.Slug)
	suite.Equal("post", empty.Slug)
}

func (suite *DatabaseTestSuite) TestCreatePostWithTags() {
	alice := suite.createUser("alice")
	post := suite.createPost(alice, "Tagged", PostStatusPublished, "go", "Go", "web")

	loaded, err := suite.db.GetPostByID(suite.ctx, post.ID)
	suite.Require().NoError(err)
	names := lo.Map(loaded.Tags, func(t Tag, _ int) string { return t.Name })
	suite.ElementsMatch([]string{"go", "Go", "web"}, names)
	suite.Require().NotNil(loaded.Author)
	suite.Equal("alice", loaded.Author.Username)
}

func (suite *DatabaseTestSuite) TestUpdatePostReplacesTags() {
	alice := suite.createUser("alice")
	post := suite.createPost(alice, "Tagged", PostStatusPublished, "one", "two")

	post.Title = "Retitled"
	post.Status = PostStatusDraft
	suite.Require().NoError(suite.db.UpdatePost(suite.ctx, post, []string{"two", "three"}))

	loaded, err := suite.db.GetPostByID(suite.ctx, post.ID)
	suite.Require().NoError(err)
	suite.Equal("Retitled", loaded.Title)
	suite.Equal(PostStatusDraft, loaded.Status)
	suite.Equal("tagged", loaded.Slug)
	names := lo.Map(loaded.Tags, func(t Tag, _ int) string { return t.Name })
	suite.ElementsMatch([]string{"two", "three"}, names)

	suite.Require().NoError(suite.db.UpdatePost(suite.ctx, post, nil))
	loaded, err = suite.db.GetPostByID(suite.ctx, post.ID)
	suite.Require().NoError(err)
	suite.Empty(loaded.Tags)
}

func (suite *DatabaseTestSuite) TestGetOrCreateTag() {
	tag, created, err := suite.db.GetOrCreateTag(suite.ctx, "golang")
	suite.Require().NoError(err)
	suite.True(created)

	again, created, err := suite.db.GetOrCreateTag(suite.ctx, "golang")
	suite.Require().NoError(err)
	suite.False(created)
	suite.Equal(tag.ID, again.ID)

	other, created, err := suite.db.GetOrCreateTag(suite.ctx, "Golang")
	suite.Require().NoError(err)
	suite.True(created)
	suite.NotEqual(tag.ID, other.ID)
	suite.Equal("golang-2", other.Slug)
}

func (suite *DatabaseTestSuite) TestGetOrCreateCategoryConcurrent() {
	var wg sync.WaitGroup
	ids := make([]uint, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			category, _, err := suite.db.GetOrCreateCategory(suite.ctx, "Science")
			errs[i] = err
			if err == nil {
				ids[i] = category.ID
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		suite.NoError(err)
	}
	suite.Len(lo.Uniq(ids), 1)
	count, err := suite.db.CountCategories(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)
}

func (suite *DatabaseTestSuite) TestAddLikeIsUnique() {
	alice := suite.createUser("alice")
	post := suite.createPost(alice, "Likeable", PostStatusPublished)

	added, err := suite.db.AddLike(suite.ctx, post.ID, alice.ID)
	suite.Require().NoError(err)
	suite.True(added)

	added, err = suite.db.AddLike(suite.ctx, post.ID, alice.ID)
	suite.Require().NoError(err)
	suite.False(added)

	count, err := suite.db.CountLikes(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	removed, err := suite.db.RemoveLike(suite.ctx, post.ID, alice.ID)
	suite.Require().NoError(err)
	suite.True(removed)

	removed, err = suite.db.RemoveLike(suite.ctx, post.ID, alice.ID)
	suite.Require().NoError(err)
	suite.False(removed)
}

func (suite *DatabaseTestSuite) TestListPostsFilters() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	science, _, err := suite.db.GetOrCreateCategory(suite.ctx, "Science")
	suite.Require().NoError(err)

	p1 := &Post{AuthorID: alice.ID, Title: "Quantum 100% explained", Content: "physics", Status: PostStatusPublished, CategoryID: &science.ID}
	suite.Require().NoError(suite.db.CreatePost(suite.ctx, p1, []string{"physics"}))
	p2 := suite.createPost(bob, "Gardening", PostStatusPublished, "plants")
	p3 := suite.createPost(alice, "Secret draft", PostStatusDraft)

	tests := []struct {
		name     string
		filter   PostFilter
		expected []uint
	}{
		{name: "no filter", filter: PostFilter{}, expected: []uint{p3.ID, p2.ID, p1.ID}},
		{name: "published", filter: PostFilter{Status: PostStatusPublished}, expected: []uint{p2.ID, p1.ID}},
		{name: "author", filter: PostFilter{AuthorID: lo.ToPtr(alice.ID)}, expected: []uint{p3.ID, p1.ID}},
		{name: "category", filter: PostFilter{CategoryID: lo.ToPtr(science.ID)}, expected: []uint{p1.ID}},
		{name: "tag", filter: PostFilter{TagID: lo.ToPtr(p2.Tags[0].ID)}, expected: []uint{p2.ID}},
		{name: "query is case insensitive", filter: PostFilter{Query: "GARDEN"}, expected: []uint{p2.ID}},
		{name: "query escapes wildcards", filter: PostFilter{Query: "100%"}, expected: []uint{p1.ID}},
		{name: "query matches author", filter: PostFilter{Query: "bob", SearchAuthor: true}, expected: []uint{p2.ID}},
		{name: "query without author search", filter: PostFilter{Query: "bob"}, expected: []uint{}},
		{name: "title ordering", filter: PostFilter{OrderBy: "title"}, expected: []uint{p2.ID, p1.ID, p3.ID}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			page, err := suite.db.ListPosts(suite.ctx, tt.filter, Page{Number: 1, Size: 10})
			suite.Require().NoError(err)
			ids := lo.Map(page.Items, func(p Post, _ int) uint { return p.ID })
			suite.Equal(tt.expected, ids)
		})
	}
}

func (suite *DatabaseTestSuite) TestListPostsDateRange() {
	alice := suite.createUser("alice")
	recent := suite.createPost(alice, "Recent", PostStatusPublished)
	old := suite.createPost(alice, "Old", PostStatusPublished)
	suite.Require().NoError(suite.db.db.Model(&Post{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().AddDate(0, 0, -10)).Error)

	page, err := suite.db.ListPosts(suite.ctx, PostFilter{DateRange: DateRangeWeek}, Page{Number: 1, Size: 10})
	suite.Require().NoError(err)
	suite.Require().Len(page.Items, 1)
	suite.Equal(recent.ID, page.Items[0].ID)

	page, err = suite.db.ListPosts(suite.ctx, PostFilter{DateRange: DateRangeMonth}, Page{Number: 1, Size: 10})
	suite.Require().NoError(err)
	suite.Len(page.Items, 2)
}

func (suite *DatabaseTestSuite) TestPaginationClampsPage() {
	alice := suite.createUser("alice")
	for i := 0; i < 5; i++ {
		suite.createPost(alice, "Post", PostStatusPublished)
	}

	page, err := suite.db.ListPosts(suite.ctx, PostFilter{}, Page{Number: 99, Size: 2})
	suite.Require().NoError(err)
	suite.Equal(3, page.Page)
	suite.Equal(3, page.TotalPages)
	suite.Equal(int64(5), page.Total)
	suite.Len(page.Items, 1)
	suite.False(page.HasNext())
	suite.True(page.HasPrev())

	page, err = suite.db.ListPosts(suite.ctx, PostFilter{}, Page{Number: -1, Size: 2})
	suite.Require().NoError(err)
	suite.Equal(1, page.Page)
	suite.True(page.HasNext())
	suite.False(page.HasPrev())
}

func (suite *DatabaseTestSuite) TestEmptyListingHasOnePage() {
	page, err := suite.db.ListComments(suite.ctx, CommentFilter{}, Page{Number: 3, Size: 15})
	suite.Require().NoError(err)
	suite.Equal(1, page.Page)
	suite.Equal(1, page.TotalPages)
	suite.Empty(page.Items)
}

func (suite *DatabaseTestSuite) TestPostCounts() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	post := suite.createPost(alice, "Counted", PostStatusPublished)
	other := suite.createPost(alice, "Quiet", PostStatusPublished)

	suite.Require().NoError(suite.db.CreateComment(suite.ctx, &Comment{PostID: post.ID, AuthorID: &bob.ID, Content: "a", Approved: true}))
	suite.Require().NoError(suite.db.CreateComment(suite.ctx, &Comment{PostID: post.ID, AuthorID: &bob.ID, Content: "b", Approved: false}))
	_, err := suite.db.AddLike(suite.ctx, post.ID, bob.ID)
	suite.Require().NoError(err)
	_, err = suite.db.AddLike(suite.ctx, post.ID, alice.ID)
	suite.Require().NoError(err)

	counts, err := suite.db.GetPostCounts(suite.ctx, []uint{post.ID, other.ID}, true)
	suite.Require().NoError(err)
	suite.Equal(PostCounts{Comments: 1, Likes: 2}, counts[post.ID])
	suite.Equal(PostCounts{}, counts[other.ID])

	counts, err = suite.db.GetPostCounts(suite.ctx, []uint{post.ID}, false)
	suite.Require().NoError(err)
	suite.Equal(int64(2), counts[post.ID].Comments)

	liked, err := suite.db.GetLikedPostIDs(suite.ctx, bob.ID, []uint{post.ID, other.ID})
	suite.Require().NoError(err)
	suite.True(liked[post.ID])
	suite.False(liked[other.ID])

	users, err := suite.db.GetUserCounts(suite.ctx, []uint{alice.ID, bob.ID})
	suite.Require().NoError(err)
	suite.Equal(UserCounts{Posts: 2, Likes: 1}, users[alice.ID])
	suite.Equal(UserCounts{Comments: 2, Likes: 1}, users[bob.ID])
}

func (suite *DatabaseTestSuite) TestCategoriesAndTagsWithCounts() {
	alice := suite.createUser("alice")
	science, _, err := suite.db.GetOrCreateCategory(suite.ctx, "Science")
	suite.Require().NoError(err)
	_, _, err = suite.db.GetOrCreateCategory(suite.ctx, "Art")
	suite.Require().NoError(err)

	for _, status := range []PostStatus{PostStatusPublished, PostStatusPublished, PostStatusDraft} {
		p := &Post{AuthorID: alice.ID, Title: "Science", Content: "x", Status: status, CategoryID: &science.ID}
		suite.Require().NoError(suite.db.CreatePost(suite.ctx, p, []string{"lab"}))
	}

	categories, err := suite.db.ListCategoriesWithCounts(suite.ctx, true, 0)
	suite.Require().NoError(err)
	suite.Require().Len(categories, 2)
	suite.Equal("Science", categories[0].Name)
	suite.Equal(int64(2), categories[0].PostCount)
	suite.Equal("Art", categories[1].Name)
	suite.Equal(int64(0), categories[1].PostCount)

	categories, err = suite.db.ListCategoriesWithCounts(suite.ctx, false, 1)
	suite.Require().NoError(err)
	suite.Require().Len(categories, 1)
	suite.Equal(int64(3), categories[0].PostCount)

	tags, err := suite.db.ListTagsWithCounts(suite.ctx, true, 0)
	suite.Require().NoError(err)
	suite.Require().Len(tags, 1)
	suite.Equal(int64(2), tags[0].PostCount)

	recent, err := suite.db.GetRecentPostsByCategory(suite.ctx, 2)
	suite.Require().NoError(err)
	suite.Len(recent[science.ID], 2)
	for _, p := range recent[science.ID] {
		suite.Equal(PostStatusPublished, p.Status)
		suite.Require().NotNil(p.Author)
	}
}

func (suite *DatabaseTestSuite) TestDeleteCategoryKeepsPosts() {
	alice := suite.createUser("alice")
	science, _, err := suite.db.GetOrCreateCategory(suite.ctx, "Science")
	suite.Require().NoError(err)
	post := &Post{AuthorID: alice.ID, Title: "Kept", Content: "x", Status: PostStatusPublished, CategoryID: &science.ID}
	suite.Require().NoError(suite.db.CreatePost(suite.ctx, post, nil))

	suite.Require().NoError(suite.db.DeleteCategory(suite.ctx, science.ID))

	loaded, err := suite.db.GetPostByID(suite.ctx, post.ID)
	suite.Require().NoError(err)
	suite.Nil(loaded.CategoryID)
	suite.True(IsNotFound(suite.db.DeleteCategory(suite.ctx, science.ID)))
}

func (suite *DatabaseTestSuite) TestDeletePostCascades() {
	alice := suite.createUser("alice")
	post := suite.createPost(alice, "Doomed", PostStatusPublished, "gone")
	suite.Require().NoError(suite.db.CreateComment(suite.ctx, &Comment{PostID: post.ID, AuthorID: &alice.ID, Content: "hi", Approved: true}))
	_, err := suite.db.AddLike(suite.ctx, post.ID, alice.ID)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.DeletePost(suite.ctx, post.ID))

	comments, err := suite.db.CountComments(suite.ctx, nil)
	suite.Require().NoError(err)
	suite.Zero(comments)
	likes, err := suite.db.CountLikes(suite.ctx)
	suite.Require().NoError(err)
	suite.Zero(likes)
	tags, err := suite.db.CountTags(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(1), tags)
}

func (suite *DatabaseTestSuite) TestDeleteUserCascades() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	alicePost := suite.createPost(alice, "Alice's", PostStatusPublished, "mine")
	bobPost := suite.createPost(bob, "Bob's", PostStatusPublished)

	suite.Require().NoError(suite.db.CreateComment(suite.ctx, &Comment{PostID: bobPost.ID, AuthorID: &alice.ID, Content: "kept", Approved: true}))
	suite.Require().NoError(suite.db.CreateComment(suite.ctx, &Comment{PostID: alicePost.ID, AuthorID: &bob.ID, Content: "dropped", Approved: true}))
	_, err := suite.db.AddLike(suite.ctx, bobPost.ID, alice.ID)
	suite.Require().NoError(err)
	_, err = suite.db.AddLike(suite.ctx, alicePost.ID, bob.ID)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.DeleteUser(suite.ctx, alice.ID))

	_, err = suite.db.GetUserByID(suite.ctx, alice.ID)
	suite.True(IsNotFound(err))
	_, err = suite.db.GetPostByID(suite.ctx, alicePost.ID)
	suite.True(IsNotFound(err))

	comments, err := suite.db.GetPostComments(suite.ctx, bobPost.ID, false)
	suite.Require().NoError(err)
	suite.Require().Len(comments, 1)
	suite.Nil(comments[0].AuthorID)

	likes, err := suite.db.CountLikes(suite.ctx)
	suite.Require().NoError(err)
	suite.Zero(likes)

	var profiles int64
	suite.Require().NoError(suite.db.db.Model(&Profile{}).Count(&profiles).Error)
	suite.Equal(int64(1), profiles)
}

func (suite *DatabaseTestSuite) TestSiteSettingsInitIsIdempotent() {
	settings, err := suite.db.InitSiteSettings(suite.ctx, DefaultSiteSettings())
	suite.Require().NoError(err)
	suite.Equal("ThoughtNest", settings.SiteName)
	suite.Equal(12, settings.PostsPerPage)
	suite.True(settings.AllowComments)
	suite.False(settings.ModerateComments)

	settings.SiteName = "Renamed"
	settings.AllowComments = false
	suite.Require().NoError(suite.db.SaveSiteSettings(suite.ctx, settings))

	again, err := suite.db.InitSiteSettings(suite.ctx, DefaultSiteSettings())
	suite.Require().NoError(err)
	suite.Equal("Renamed", again.SiteName)
	suite.False(again.AllowComments)

	var rows int64
	suite.Require().NoError(suite.db.db.Model(&SiteSettings{}).Count(&rows).Error)
	suite.Equal(int64(1), rows)
}

func (suite *DatabaseTestSuite) TestTopPostsAndAuthors() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	popular := suite.createPost(alice, "Popular", PostStatusPublished)
	suite.createPost(alice, "Second", PostStatusPublished)
	niche := suite.createPost(bob, "Niche", PostStatusPublished)

	for _, u := range []*User{alice, bob} {
		_, err := suite.db.AddLike(suite.ctx, popular.ID, u.ID)
		suite.Require().NoError(err)
	}
	_, err := suite.db.AddLike(suite.ctx, niche.ID, alice.ID)
	suite.Require().NoError(err)

	top, err := suite.db.GetTopPostsByLikes(suite.ctx, 5)
	suite.Require().NoError(err)
	suite.Require().Len(top, 2)
	suite.Equal(popular.ID, top[0].Post.ID)
	suite.Equal(int64(2), top[0].Likes)
	suite.Equal(niche.ID, top[1].Post.ID)

	authors, err := suite.db.GetTopAuthors(suite.ctx, 5)
	suite.Require().NoError(err)
	suite.Require().Len(authors, 2)
	suite.Equal("alice", authors[0].User.Username)
	suite.Equal(int64(2), authors[0].Posts)
}

func (suite *DatabaseTestSuite) TestDeleteAllComments() {
	alice := suite.createUser("alice")
	post := suite.createPost(alice, "Chatty", PostStatusPublished)
	for i := 0; i < 3; i++ {
		suite.Require().NoError(suite.db.CreateComment(suite.ctx, &Comment{PostID: post.ID, AuthorID: &alice.ID, Content: "c", Approved: true}))
	}

	n, err := suite.db.DeleteAllComments(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(3), n)

	n, err = suite.db.DeleteAllComments(suite.ctx)
	suite.Require().NoError(err)
	suite.Zero(n)
}
