package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("secret", id, true, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.True(t, claims.IsAdmin)
}

func TestToken_Rejected(t *testing.T) {
	token, err := GenerateToken("secret", uuid.New(), false, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", uuid.New(), false, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePagination(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=3&limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Offset: 20}, got)

	_, err = app.Test(httptest.NewRequest("GET", "/?page=-1&limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Offset: 0}, got)
}

func TestParsePagination_CapsLimit(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePagination(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?limit=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, 100, got.Limit)
}
