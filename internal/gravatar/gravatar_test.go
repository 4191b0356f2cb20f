package gravatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thoughtnest/thoughtnest/internal/config"
)

const testHash = "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b"

func TestResolverURL(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		config   *config.GravatarConfig
		expected string
	}{
		{
			name:     "disabled gravatar",
			email:    "test@example.com",
			config:   &config.GravatarConfig{Enabled: false},
			expected: "",
		},
		{
			name:     "nil config",
			email:    "test@example.com",
			config:   nil,
			expected: "",
		},
		{
			name:     "empty email",
			email:    "   ",
			config:   &config.GravatarConfig{Enabled: true},
			expected: "",
		},
		{
			name:     "basic enabled config",
			email:    "test@example.com",
			config:   &config.GravatarConfig{Enabled: true},
			expected: baseURL + testHash,
		},
		{
			name:  "all options with case normalization",
			email: "  TEST@EXAMPLE.COM ",
			config: &config.GravatarConfig{
				Enabled:      true,
				DefaultImage: "identicon",
				Rating:       "pg",
				Size:         120,
			},
			expected: baseURL + testHash + "?d=identicon&r=pg&s=120",
		},
		{
			name:  "invalid options are dropped",
			email: "test@example.com",
			config: &config.GravatarConfig{
				Enabled:      true,
				DefaultImage: "unicorn",
				Rating:       "nc17",
				Size:         5000,
			},
			expected: baseURL + testHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.config).URL(tt.email))
		})
	}
}

func TestResolverURLWithSize(t *testing.T) {
	r := New(&config.GravatarConfig{Enabled: true, Size: 80})
	assert.Equal(t, baseURL+testHash+"?s=200", r.URLWithSize("test@example.com", 200))
	assert.Equal(t, baseURL+testHash, r.URLWithSize("test@example.com", 0))

	var nilResolver *Resolver
	assert.Empty(t, nilResolver.URL("test@example.com"))
}

func TestIsValidDefaultImage(t *testing.T) {
	for _, img := range []string{"404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"} {
		assert.True(t, IsValidDefaultImage(img), "Expected %s to be valid", img)
	}
	for _, img := range []string{"invalid", "", "test", "404x", "MP"} {
		assert.False(t, IsValidDefaultImage(img), "Expected %s to be invalid", img)
	}
}

func TestIsValidRating(t *testing.T) {
	for _, rating := range []string{"g", "pg", "r", "x"} {
		assert.True(t, IsValidRating(rating), "Expected %s to be valid", rating)
	}
	for _, rating := range []string{"invalid", "", "G", "PG", "nc17"} {
		assert.False(t, IsValidRating(rating), "Expected %s to be invalid", rating)
	}
}

func TestIsValidSize(t *testing.T) {
	for _, size := range []int{1, 80, 2048} {
		assert.True(t, IsValidSize(size), "Expected %d to be valid", size)
	}
	for _, size := range []int{0, -1, 2049} {
		assert.False(t, IsValidSize(size), "Expected %d to be invalid", size)
	}
}
