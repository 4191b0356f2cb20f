package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thoughtnest/thoughtnest/internal/database"
)

func testContext(target string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestPageQuery(t *testing.T) {
	tests := map[string]int{
		"/":             1,
		"/?page=3":      3,
		"/?page=0":      1,
		"/?page=-2":     1,
		"/?page=abc":    1,
		"/?page=999999": 999999,
	}
	for target, want := range tests {
		assert.Equal(t, want, pageQuery(testContext(target)), target)
	}
}

func TestOptionalID(t *testing.T) {
	assert.Nil(t, optionalID(""))
	assert.Nil(t, optionalID("  "))
	assert.Nil(t, optionalID("0"))
	assert.Nil(t, optionalID("x1"))
	assert.Nil(t, optionalID("-4"))

	id := optionalID(" 42 ")
	require.NotNil(t, id)
	assert.Equal(t, uint(42), *id)
}

func TestDateQuery(t *testing.T) {
	c := testContext("/?joined_from=2024-02-29&joined_to=yesterday")

	from := dateQuery(c, "joined_from")
	require.NotNil(t, from)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.Local), *from)
	assert.Nil(t, dateQuery(c, "joined_to"))
	assert.Nil(t, dateQuery(c, "missing"))
}

func TestPostStatusQuery(t *testing.T) {
	assert.Equal(t, database.PostStatusDraft, postStatusQuery(testContext("/?status=Draft")))
	assert.Equal(t, database.PostStatusPublished, postStatusQuery(testContext("/?status=published")))
	assert.Equal(t, database.PostStatus(""), postStatusQuery(testContext("/?status=archived")))
}

func TestCheckbox(t *testing.T) {
	for _, v := range []string{"on", "true", "1", "yes", " ON "} {
		assert.True(t, checkbox(v), v)
	}
	for _, v := range []string{"", "off", "false", "0", "nope"} {
		assert.False(t, checkbox(v), v)
	}
}

func TestFilters(t *testing.T) {
	c := testContext("/?q=go&status=draft")
	assert.Equal(t, gin.H{"q": "go", "status": "draft", "date_range": ""}, filters(c, "q", "status", "date_range"))
}
