package registry

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/auth"
	"github.com/eReuse/DeviceWare/internal/config"
	"github.com/eReuse/DeviceWare/internal/models"
)

// Provisioner ensures the worker's service account exists before login
type Provisioner interface {
	EnsureServiceAccount(account config.ServiceAccountConfig) error
}

// DBProvisioner provisions the service account straight in the store,
// like the request path does, instead of going through HTTP.
type DBProvisioner struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewDBProvisioner(db *gorm.DB, logger *zap.Logger) *DBProvisioner {
	return &DBProvisioner{db: db, logger: logger}
}

// EnsureServiceAccount creates the service account if it does not exist.
// A concurrent or earlier creation is success, not an error.
func (p *DBProvisioner) EnsureServiceAccount(account config.ServiceAccountConfig) error {
	// Lowercased like the login path, or the worker could provision an
	// account it can never authenticate as
	email := strings.ToLower(account.Email)

	var existing models.Account
	err := p.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up service account: %w", err)
	}

	created, err := newServiceAccount(account)
	if err != nil {
		return err
	}
	if err := p.db.Create(&created).Error; err != nil {
		// Duplicate key from a concurrent provisioning attempt
		var winner models.Account
		if lookupErr := p.db.Where("email = ?", email).First(&winner).Error; lookupErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create service account: %w", err)
	}

	p.logger.Info("Provisioned registry service account",
		zap.String("email", created.Email),
	)
	return nil
}

// newServiceAccount builds the worker's account row. The e-mail is
// stored lowercased, matching how Login compares it.
func newServiceAccount(account config.ServiceAccountConfig) (models.Account, error) {
	hash, err := auth.HashPassword(account.Password)
	if err != nil {
		return models.Account{}, err
	}
	token, err := auth.GenerateToken()
	if err != nil {
		return models.Account{}, err
	}

	return models.Account{
		Email:     strings.ToLower(account.Email),
		Name:      account.Name,
		Password:  hash,
		Token:     token,
		Role:      models.RoleMachineSuperuser,
		Active:    true,
		Databases: models.StringList{},
	}, nil
}
