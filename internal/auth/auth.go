package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/models"
)

// localAccount is the fiber.Ctx locals key holding the authenticated account
const localAccount = "account"

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against its bcrypt hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken returns a new opaque bearer token
func GenerateToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Middleware authenticates requests via the Authorization: Bearer header
// and stores the account in the request context.
func Middleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or malformed Authorization header",
			})
		}

		var account models.Account
		err := db.Where("token = ? AND active = true", token).First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid token",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to authenticate",
			})
		}

		c.Locals(localAccount, &account)
		return c.Next()
	}
}

// RequireDatabase checks that the authenticated account belongs to the
// tenant named by the :db route parameter.
func RequireDatabase() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFromCtx(c)
		if account == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not authenticated",
			})
		}
		db := c.Params("db")
		if db == "" || !account.HasDatabase(db) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "no access to database " + db,
			})
		}
		return c.Next()
	}
}

// RequireElevated restricts a route to admin-grade accounts
func RequireElevated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFromCtx(c)
		if account == nil || !account.Role.Elevated() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}
		return c.Next()
	}
}

// AccountFromCtx returns the authenticated account, or nil
func AccountFromCtx(c *fiber.Ctx) *models.Account {
	account, _ := c.Locals(localAccount).(*models.Account)
	return account
}
