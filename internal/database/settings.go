package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm/clause"
)

// SiteSettingsID is the primary key of the single settings row.
const SiteSettingsID = 1

// SiteSettings is the site-wide configuration. Exactly one row exists.
type SiteSettings struct {
	ID                uint   `gorm:"primarykey;autoIncrement:false"`
	SiteName          string `gorm:"size:100;not null"`
	SiteTagline       string `gorm:"size:200"`
	SiteDescription   string `gorm:"type:text"`
	ContactEmail      string `gorm:"size:254"`
	PostsPerPage      int    `gorm:"not null"`
	ExcerptLength     int    `gorm:"not null"`
	AllowComments     bool   `gorm:"not null"`
	ModerateComments  bool   `gorm:"not null"`
	AllowRegistration bool   `gorm:"not null"`
	ShowAuthor        bool   `gorm:"not null"`
	UpdatedAt         time.Time
}

// DefaultSiteSettings returns the settings a fresh installation starts with.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		ID:                SiteSettingsID,
		SiteName:          "ThoughtNest",
		SiteTagline:       "Gather ideas. Grow perspectives.",
		PostsPerPage:      12,
		ExcerptLength:     25,
		AllowComments:     true,
		ModerateComments:  false,
		AllowRegistration: true,
		ShowAuthor:        true,
	}
}

// InitSiteSettings inserts defaults unless the row exists, then returns the stored row.
func (c *Client) InitSiteSettings(ctx context.Context, defaults SiteSettings) (*SiteSettings, error) {
	defaults.ID = SiteSettingsID
	if err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&defaults).Error; err != nil {
		log.Error("failed to initialize site settings", "error", err)
		return nil, err
	}
	return c.GetSiteSettings(ctx)
}

func (c *Client) GetSiteSettings(ctx context.Context) (*SiteSettings, error) {
	var settings SiteSettings
	if err := c.db.WithContext(ctx).First(&settings, SiteSettingsID).Error; err != nil {
		if !IsNotFound(err) {
			log.Error("failed to get site settings", "error", err)
		}
		return nil, err
	}
	return &settings, nil
}

func (c *Client) SaveSiteSettings(ctx context.Context, settings *SiteSettings) error {
	settings.ID = SiteSettingsID
	if err := c.db.WithContext(ctx).Save(settings).Error; err != nil {
		log.Error("failed to save site settings", "error", err)
		return err
	}
	return nil
}
