package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/auth"
	"github.com/eReuse/DeviceWare/internal/models"
)

// AccountsHandler handles account creation and login
type AccountsHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewAccountsHandler(db *gorm.DB, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{DB: db, Logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID              string            `json:"_id"`
	Email           string            `json:"email"`
	Token           string            `json:"token"`
	Role            models.Role       `json:"role"`
	Databases       models.StringList `json:"databases"`
	DefaultDatabase string            `json:"defaultDatabase,omitempty"`
}

// Login handles POST /login
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email and password are required",
		})
	}

	var account models.Account
	err := h.DB.Where("email = ? AND active = true", strings.ToLower(req.Email)).First(&account).Error
	if err != nil || !auth.CheckPassword(account.Password, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}

	return c.JSON(loginResponse{
		ID:              account.ID.String(),
		Email:           account.Email,
		Token:           account.Token,
		Role:            account.Role,
		Databases:       account.Databases,
		DefaultDatabase: account.DefaultDatabase,
	})
}

type createAccountRequest struct {
	Email           string            `json:"email"`
	Password        string            `json:"password"`
	Name            string            `json:"name"`
	Role            string            `json:"role"`
	Organization    string            `json:"organization"`
	Active          *bool             `json:"active"`
	Databases       models.StringList `json:"databases"`
	DefaultDatabase string            `json:"defaultDatabase"`
}

// Create handles POST /accounts
func (h *AccountsHandler) Create(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email is required",
		})
	}

	role := models.RoleBasic
	if req.Role != "" {
		role = models.Role(req.Role)
		if !role.Valid() {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "unknown role: " + req.Role,
			})
		}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	account := models.Account{
		Email:           strings.ToLower(req.Email),
		Name:            req.Name,
		Role:            role,
		Organization:    req.Organization,
		Active:          active,
		Databases:       req.Databases,
		DefaultDatabase: req.DefaultDatabase,
	}
	if account.Databases == nil {
		account.Databases = models.StringList{}
	}

	// Only active accounts can authenticate: they need a password hash
	// and a token
	if active {
		if req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "active accounts require a password",
			})
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			h.Logger.Error("Failed to hash password", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create account",
			})
		}
		account.Password = hash

		token, err := auth.GenerateToken()
		if err != nil {
			h.Logger.Error("Failed to generate token", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create account",
			})
		}
		account.Token = token
	}

	// Default database falls back to the first assigned one
	if account.DefaultDatabase == "" && role != models.RoleSuperuser && len(account.Databases) > 0 {
		account.DefaultDatabase = account.Databases[0]
	}

	if err := h.DB.Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "an account with this email already exists",
			})
		}
		h.Logger.Error("Failed to create account",
			zap.String("email", account.Email),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create account",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}
