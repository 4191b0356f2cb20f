package blog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

const settingsCacheKey = "current"

// IdentityInput holds the site identity settings group.
type IdentityInput struct {
	SiteName        string
	SiteTagline     string
	SiteDescription string
	ContactEmail    string
}

// PolicyInput holds the content policy settings group.
type PolicyInput struct {
	PostsPerPage      int
	ExcerptLength     int
	AllowComments     bool
	ModerateComments  bool
	AllowRegistration bool
	ShowAuthor        bool
}

// InitSettings creates the settings row if it is missing and loads it into the cache.
func (s *Service) InitSettings(ctx context.Context) (*database.SiteSettings, error) {
	settings, err := s.db.InitSiteSettings(ctx, database.DefaultSiteSettings())
	if err != nil {
		return nil, err
	}
	s.cacheSettings(ctx, settings)
	return settings, nil
}

// Settings returns the current site settings, preferring the cached copy.
func (s *Service) Settings(ctx context.Context) (*database.SiteSettings, error) {
	if cached, err := s.settingsCache.Get(ctx, settingsCacheKey); err == nil {
		return &cached, nil
	}
	settings, err := s.db.GetSiteSettings(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			// the row was removed behind our back, recreate it
			return s.InitSettings(ctx)
		}
		return nil, err
	}
	s.cacheSettings(ctx, settings)
	return settings, nil
}

// ResyncSettings reloads the settings row into the cache.
func (s *Service) ResyncSettings(ctx context.Context) error {
	settings, err := s.db.GetSiteSettings(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			_, err = s.InitSettings(ctx)
		}
		return err
	}
	s.cacheSettings(ctx, settings)
	return nil
}

// UpdateIdentity saves the site identity group.
func (s *Service) UpdateIdentity(ctx context.Context, actor *database.User, in IdentityInput) (*database.SiteSettings, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	in.SiteName = strings.TrimSpace(in.SiteName)
	in.SiteTagline = strings.TrimSpace(in.SiteTagline)
	in.SiteDescription = strings.TrimSpace(in.SiteDescription)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)

	switch {
	case in.SiteName == "":
		return nil, validationf("Site name is required.")
	case utf8.RuneCountInString(in.SiteName) > 100:
		return nil, validationf("Site name must be at most 100 characters.")
	case utf8.RuneCountInString(in.SiteTagline) > 200:
		return nil, validationf("Tagline must be at most 200 characters.")
	case in.ContactEmail != "" && !emailPattern.MatchString(in.ContactEmail):
		return nil, validationf("Enter a valid contact email address.")
	}

	settings, err := s.db.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.SiteName = in.SiteName
	settings.SiteTagline = in.SiteTagline
	settings.SiteDescription = in.SiteDescription
	settings.ContactEmail = in.ContactEmail
	return s.saveSettings(ctx, actor, settings)
}

// UpdatePolicy saves the content policy group.
func (s *Service) UpdatePolicy(ctx context.Context, actor *database.User, in PolicyInput) (*database.SiteSettings, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if in.PostsPerPage < 1 || in.PostsPerPage > 100 {
		return nil, validationf("Posts per page must be between 1 and 100.")
	}
	if in.ExcerptLength < 1 || in.ExcerptLength > 500 {
		return nil, validationf("Excerpt length must be between 1 and 500 words.")
	}

	settings, err := s.db.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.PostsPerPage = in.PostsPerPage
	settings.ExcerptLength = in.ExcerptLength
	settings.AllowComments = in.AllowComments
	settings.ModerateComments = in.ModerateComments
	settings.AllowRegistration = in.AllowRegistration
	settings.ShowAuthor = in.ShowAuthor
	return s.saveSettings(ctx, actor, settings)
}

func (s *Service) saveSettings(ctx context.Context, actor *database.User, settings *database.SiteSettings) (*database.SiteSettings, error) {
	if err := s.db.SaveSiteSettings(ctx, settings); err != nil {
		return nil, err
	}
	s.cacheSettings(ctx, settings)
	log.Info("Updated site settings", "by", actor.Username)
	return settings, nil
}

func (s *Service) cacheSettings(ctx context.Context, settings *database.SiteSettings) {
	if err := s.settingsCache.Set(ctx, settingsCacheKey, *settings); err != nil {
		log.Warn("failed to cache site settings", "error", err)
	}
}
