package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/config"
)

const baseURL = "https://www.gravatar.com/avatar/"

var (
	validDefaults = map[string]bool{
		"404":       true,
		"mp":        true,
		"identicon": true,
		"monsterid": true,
		"wavatar":   true,
		"retro":     true,
		"robohash":  true,
		"blank":     true,
	}
	validRatings = map[string]bool{
		"g":  true,
		"pg": true,
		"r":  true,
		"x":  true,
	}
)

// Resolver builds avatar URLs for user emails.
// A nil or disabled resolver returns empty URLs.
type Resolver struct {
	enabled      bool
	defaultImage string
	rating       string
	size         int
}

// New returns a resolver for cfg. Invalid options are dropped with a warning.
func New(cfg *config.GravatarConfig) *Resolver {
	if cfg == nil || !cfg.Enabled {
		return &Resolver{}
	}
	r := &Resolver{enabled: true}
	if cfg.DefaultImage != "" {
		if IsValidDefaultImage(cfg.DefaultImage) {
			r.defaultImage = cfg.DefaultImage
		} else {
			log.Warn("ignoring invalid gravatar default image", "value", cfg.DefaultImage)
		}
	}
	if cfg.Rating != "" {
		if IsValidRating(cfg.Rating) {
			r.rating = cfg.Rating
		} else {
			log.Warn("ignoring invalid gravatar rating", "value", cfg.Rating)
		}
	}
	if cfg.Size != 0 {
		if IsValidSize(cfg.Size) {
			r.size = cfg.Size
		} else {
			log.Warn("ignoring invalid gravatar size", "value", cfg.Size)
		}
	}
	return r
}

// URL returns the avatar URL for email using the configured size.
func (r *Resolver) URL(email string) string {
	if r == nil {
		return ""
	}
	return r.URLWithSize(email, r.size)
}

// URLWithSize returns the avatar URL for email at the given size.
// Sizes outside 1-2048 are omitted from the URL.
func (r *Resolver) URLWithSize(email string, size int) string {
	if r == nil || !r.enabled {
		return ""
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(email))
	u := baseURL + hex.EncodeToString(hash[:])

	params := url.Values{}
	if r.defaultImage != "" {
		params.Add("d", r.defaultImage)
	}
	if r.rating != "" {
		params.Add("r", r.rating)
	}
	if IsValidSize(size) {
		params.Add("s", strconv.Itoa(size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// IsValidDefaultImage checks if the provided default image value is valid for Gravatar.
func IsValidDefaultImage(defaultImage string) bool {
	return validDefaults[defaultImage]
}

// IsValidRating checks if the provided rating value is valid for Gravatar.
func IsValidRating(rating string) bool {
	return validRatings[rating]
}

// IsValidSize checks if the provided size value is valid for Gravatar (1-2048 pixels).
func IsValidSize(size int) bool {
	return size >= 1 && size <= 2048
}
