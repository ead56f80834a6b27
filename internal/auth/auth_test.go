package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eReuse/DeviceWare/internal/models"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "s3cret"), "inactive accounts carry no hash")
}

func TestGenerateToken(t *testing.T) {
	first, err := GenerateToken()
	require.NoError(t, err)
	second, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, first, 40)
	assert.NotEqual(t, first, second)
}

// withAccount injects an authenticated account the way Middleware does
func withAccount(account *models.Account) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if account != nil {
			c.Locals(localAccount, account)
		}
		return c.Next()
	}
}

func okHandler(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func TestRequireDatabase(t *testing.T) {
	tests := []struct {
		name    string
		account *models.Account
		status  int
	}{
		{
			name:    "member",
			account: &models.Account{Role: models.RoleBasic, Databases: models.StringList{"acme"}},
			status:  fiber.StatusOK,
		},
		{
			name:    "non member",
			account: &models.Account{Role: models.RoleAdmin, Databases: models.StringList{"umbrella"}},
			status:  fiber.StatusForbidden,
		},
		{
			name:    "superuser bypasses membership",
			account: &models.Account{Role: models.RoleSuperuser},
			status:  fiber.StatusOK,
		},
		{
			name:   "unauthenticated",
			status: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/:db/devices", withAccount(tt.account), RequireDatabase(), okHandler)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/acme/devices", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRequireElevated(t *testing.T) {
	tests := []struct {
		name    string
		account *models.Account
		status  int
	}{
		{
			name:    "admin",
			account: &models.Account{Role: models.RoleAdmin},
			status:  fiber.StatusOK,
		},
		{
			name:    "basic",
			account: &models.Account{Role: models.RoleBasic},
			status:  fiber.StatusForbidden,
		},
		{
			name:   "unauthenticated",
			status: fiber.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/accounts", withAccount(tt.account), RequireElevated(), okHandler)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/accounts", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
