package blog

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/thoughtnest/thoughtnest/internal/config"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

const (
	homeTopCategories      = 5
	recentPostsPerCategory = 2
	profileRecentPosts     = 5
)

// PostItem is a post in a listing with its counters.
type PostItem struct {
	Post     database.Post
	Comments int64
	Likes    int64
	Liked    bool
}

// UserItem is a user in the admin listing with its counters.
type UserItem struct {
	User   database.User
	Counts database.UserCounts
}

// HomePage is the data of the landing page.
type HomePage struct {
	Posts          *database.Paged[PostItem]
	TopCategories  []database.CategoryCount
	TotalPublished int64
}

// CategoryPage lists the published posts of a category.
type CategoryPage struct {
	Category *database.Category
	Posts    *database.Paged[PostItem]
}

// TagPage lists the published posts of a tag.
type TagPage struct {
	Tag   *database.Tag
	Posts *database.Paged[PostItem]
}

// CategoryOverview is a category with its newest posts.
type CategoryOverview struct {
	database.CategoryCount
	RecentPosts []database.Post
}

// CategoriesPage lists all categories and tags.
type CategoriesPage struct {
	Categories []CategoryOverview
	Tags       []database.TagCount
}

// ProfilePage is the data of the caller's profile page.
type ProfilePage struct {
	User        *database.User
	Counts      database.UserCounts
	RecentPosts []database.Post
}

// ManagePostsQuery filters the caller's own posts.
type ManagePostsQuery struct {
	Query      string
	CategoryID *uint
	Status     database.PostStatus
	DateRange  database.DateRange
	OrderBy    string
	Page       int
}

// MyCommentsQuery filters the caller's comments.
type MyCommentsQuery struct {
	Query     string
	PostID    *uint
	DateRange database.DateRange
	Page      int
}

// MyLikesQuery filters the caller's likes.
type MyLikesQuery struct {
	Query     string
	DateRange database.DateRange
	Page      int
}

// AdminPostsQuery filters the admin post listing.
type AdminPostsQuery struct {
	Query      string
	AuthorID   *uint
	CategoryID *uint
	Status     database.PostStatus
	DateRange  database.DateRange
	Page       int
}

// AdminActivityQuery filters the admin comment and like listings.
type AdminActivityQuery struct {
	UserID    *uint
	PostID    *uint
	DateRange database.DateRange
	Page      int
}

// AdminUsersQuery filters the admin user listing.
// JoinedTo is inclusive of the whole day.
type AdminUsersQuery struct {
	Query      string
	JoinedFrom *time.Time
	JoinedTo   *time.Time
	Page       int
}

func (s *Service) pageSize(listing config.Listing) int {
	return s.cfg.Pagination.PageSize(listing)
}

// decoratePosts attaches counters and liked flags with one grouped query each.
func (s *Service) decoratePosts(ctx context.Context, viewer *database.User, posts *database.Paged[database.Post], approvedOnly bool) (*database.Paged[PostItem], error) {
	ids := lo.Map(posts.Items, func(p database.Post, _ int) uint { return p.ID })
	counts, err := s.db.GetPostCounts(ctx, ids, approvedOnly)
	if err != nil {
		return nil, err
	}
	liked := map[uint]bool{}
	if viewer != nil {
		liked, err = s.db.GetLikedPostIDs(ctx, viewer.ID, ids)
		if err != nil {
			return nil, err
		}
	}

	return &database.Paged[PostItem]{
		Items: lo.Map(posts.Items, func(p database.Post, _ int) PostItem {
			return PostItem{
				Post:     p,
				Comments: counts[p.ID].Comments,
				Likes:    counts[p.ID].Likes,
				Liked:    liked[p.ID],
			}
		}),
		Total:      posts.Total,
		Page:       posts.Page,
		PageSize:   posts.PageSize,
		TotalPages: posts.TotalPages,
	}, nil
}

func (s *Service) publishedPosts(ctx context.Context, viewer *database.User, filter database.PostFilter, page, size int) (*database.Paged[PostItem], error) {
	filter.Status = database.PostStatusPublished
	posts, err := s.db.ListPosts(ctx, filter, database.Page{Number: page, Size: size})
	if err != nil {
		return nil, err
	}
	return s.decoratePosts(ctx, viewer, posts, true)
}

// Home returns the newest published posts and the most used categories.
func (s *Service) Home(ctx context.Context, viewer *database.User, page int) (*HomePage, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.publishedPosts(ctx, viewer, database.PostFilter{}, page, settings.PostsPerPage)
	if err != nil {
		return nil, err
	}
	categories, err := s.db.ListCategoriesWithCounts(ctx, true, homeTopCategories)
	if err != nil {
		return nil, err
	}
	return &HomePage{
		Posts:          posts,
		TopCategories:  categories,
		TotalPublished: posts.Total,
	}, nil
}

// CategoryPosts lists the published posts of a category.
func (s *Service) CategoryPosts(ctx context.Context, viewer *database.User, categoryID uint, page int) (*CategoryPage, error) {
	category, err := s.db.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, wrapNotFound(err, "Category", categoryID)
	}
	posts, err := s.publishedPosts(ctx, viewer, database.PostFilter{CategoryID: &category.ID}, page, s.pageSize(config.ListingCategoryPosts))
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Category: category, Posts: posts}, nil
}

// TagPosts lists the published posts of a tag.
func (s *Service) TagPosts(ctx context.Context, viewer *database.User, tagID uint, page int) (*TagPage, error) {
	tag, err := s.db.GetTagByID(ctx, tagID)
	if err != nil {
		return nil, wrapNotFound(err, "Tag", tagID)
	}
	posts, err := s.publishedPosts(ctx, viewer, database.PostFilter{TagID: &tag.ID}, page, s.pageSize(config.ListingTagPosts))
	if err != nil {
		return nil, err
	}
	return &TagPage{Tag: tag, Posts: posts}, nil
}

// Categories returns every category with its newest posts and every tag, with post counts.
func (s *Service) Categories(ctx context.Context) (*CategoriesPage, error) {
	categories, err := s.db.ListCategoriesWithCounts(ctx, true, 0)
	if err != nil {
		return nil, err
	}
	recent, err := s.db.GetRecentPostsByCategory(ctx, recentPostsPerCategory)
	if err != nil {
		return nil, err
	}
	tags, err := s.db.ListTagsWithCounts(ctx, true, 0)
	if err != nil {
		return nil, err
	}
	return &CategoriesPage{
		Categories: lo.Map(categories, func(c database.CategoryCount, _ int) CategoryOverview {
			return CategoryOverview{CategoryCount: c, RecentPosts: recent[c.ID]}
		}),
		Tags: tags,
	}, nil
}

// Profile returns the caller's profile page data.
func (s *Service) Profile(ctx context.Context, userID uint) (*ProfilePage, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.db.GetUserCounts(ctx, []uint{user.ID})
	if err != nil {
		return nil, err
	}
	posts, err := s.db.ListPosts(ctx, database.PostFilter{AuthorID: &user.ID}, database.Page{Number: 1, Size: profileRecentPosts})
	if err != nil {
		return nil, err
	}
	return &ProfilePage{User: user, Counts: counts[user.ID], RecentPosts: posts.Items}, nil
}

// ManagePosts lists the caller's own posts in any status.
func (s *Service) ManagePosts(ctx context.Context, user *database.User, q ManagePostsQuery) (*database.Paged[PostItem], error) {
	posts, err := s.db.ListPosts(ctx, database.PostFilter{
		AuthorID:   &user.ID,
		CategoryID: q.CategoryID,
		Status:     q.Status,
		Query:      q.Query,
		DateRange:  q.DateRange,
		Now:        s.now(),
		OrderBy:    q.OrderBy,
	}, database.Page{Number: q.Page, Size: s.pageSize(config.ListingManagePosts)})
	if err != nil {
		return nil, err
	}
	return s.decoratePosts(ctx, user, posts, false)
}

// MyComments lists the caller's comments.
func (s *Service) MyComments(ctx context.Context, user *database.User, q MyCommentsQuery) (*database.Paged[database.Comment], error) {
	return s.db.ListComments(ctx, database.CommentFilter{
		AuthorID:  &user.ID,
		PostID:    q.PostID,
		Query:     q.Query,
		DateRange: q.DateRange,
		Now:       s.now(),
	}, database.Page{Number: q.Page, Size: s.pageSize(config.ListingProfileComments)})
}

// MyLikes lists the posts the caller liked.
func (s *Service) MyLikes(ctx context.Context, user *database.User, q MyLikesQuery) (*database.Paged[database.Like], error) {
	return s.db.ListLikes(ctx, database.LikeFilter{
		UserID:    &user.ID,
		Query:     q.Query,
		DateRange: q.DateRange,
		Now:       s.now(),
	}, database.Page{Number: q.Page, Size: s.pageSize(config.ListingProfileLikes)})
}

// AdminPosts lists all posts for staff.
func (s *Service) AdminPosts(ctx context.Context, actor *database.User, q AdminPostsQuery) (*database.Paged[PostItem], error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	posts, err := s.db.ListPosts(ctx, database.PostFilter{
		AuthorID:     q.AuthorID,
		CategoryID:   q.CategoryID,
		Status:       q.Status,
		Query:        q.Query,
		SearchAuthor: true,
		DateRange:    q.DateRange,
		Now:          s.now(),
	}, database.Page{Number: q.Page, Size: s.pageSize(config.ListingAdminPosts)})
	if err != nil {
		return nil, err
	}
	return s.decoratePosts(ctx, nil, posts, false)
}

// AdminComments lists all comments for staff, including unapproved ones.
func (s *Service) AdminComments(ctx context.Context, actor *database.User, q AdminActivityQuery) (*database.Paged[database.Comment], error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.db.ListComments(ctx, database.CommentFilter{
		AuthorID:  q.UserID,
		PostID:    q.PostID,
		DateRange: q.DateRange,
		Now:       s.now(),
	}, database.Page{Number: q.Page, Size: s.pageSize(config.ListingAdminComments)})
}

// AdminLikes lists all likes for staff.
func (s *Service) AdminLikes(ctx context.Context, actor *database.User, q AdminActivityQuery) (*database.Paged[database.Like], error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.db.ListLikes(ctx, database.LikeFilter{
		UserID:    q.UserID,
		PostID:    q.PostID,
		DateRange: q.DateRange,
		Now:       s.now(),
	}, database.Page{Number: q.Page, Size: s.pageSize(config.ListingAdminLikes)})
}

// AdminCategories lists all categories with their post counts in any status.
func (s *Service) AdminCategories(ctx context.Context, actor *database.User) ([]database.CategoryCount, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.db.ListCategoriesWithCounts(ctx, false, 0)
}

// AdminTags lists all tags with their post counts in any status.
func (s *Service) AdminTags(ctx context.Context, actor *database.User) ([]database.TagCount, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.db.ListTagsWithCounts(ctx, false, 0)
}

// AdminUsers lists users with their activity counters.
func (s *Service) AdminUsers(ctx context.Context, actor *database.User, q AdminUsersQuery) (*database.Paged[UserItem], error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	filter := database.UserFilter{Query: q.Query, JoinedFrom: q.JoinedFrom}
	if q.JoinedTo != nil {
		end := q.JoinedTo.AddDate(0, 0, 1)
		filter.JoinedTo = &end
	}
	users, err := s.db.ListUsers(ctx, filter, database.Page{Number: q.Page, Size: s.pageSize(config.ListingAdminUsers)})
	if err != nil {
		return nil, err
	}
	ids := lo.Map(users.Items, func(u database.User, _ int) uint { return u.ID })
	counts, err := s.db.GetUserCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &database.Paged[UserItem]{
		Items: lo.Map(users.Items, func(u database.User, _ int) UserItem {
			return UserItem{User: u, Counts: counts[u.ID]}
		}),
		Total:      users.Total,
		Page:       users.Page,
		PageSize:   users.PageSize,
		TotalPages: users.TotalPages,
	}, nil
}
