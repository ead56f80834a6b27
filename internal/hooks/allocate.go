package hooks

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eReuse/DeviceWare/internal/models"
)

// PruneAllocation removes devices the recipient already owns. The whole
// allocation is rejected only when nothing is left to allocate.
func PruneAllocation(devices []models.Device, to uuid.UUID) ([]models.Device, error) {
	kept := make([]models.Device, 0, len(devices))
	for _, device := range devices {
		if !device.OwnedBy(to) {
			kept = append(kept, device)
		}
	}
	if len(kept) == 0 {
		return nil, ErrAlreadyAllocated
	}
	return kept, nil
}

func (r *Runner) preAllocate(tx *gorm.DB, event *models.Event, acting *models.Account) error {
	if event.UnregisteredTo != nil {
		id, err := resolveInactiveAccount(tx, event.UnregisteredTo, acting)
		if err != nil {
			return err
		}
		event.ToAccountID = &id
		event.UnregisteredTo = nil
	}
	if event.ToAccountID == nil {
		return fmt.Errorf("allocate requires a recipient")
	}
	to := *event.ToAccountID

	kept, err := PruneAllocation(event.Devices, to)
	if err != nil {
		return err
	}
	if len(kept) < len(event.Devices) {
		r.logger.Debug("Pruned already-allocated devices from allocation",
			zap.Int("dropped", len(event.Devices)-len(kept)),
		)
	}
	event.Devices = kept
	event.Components = componentsOf(kept)

	// toOrganization is a materialized copy of the recipient's current
	// organization
	if CapabilityOf(event.Kind).ToOrganization {
		var recipient models.Account
		if err := tx.First(&recipient, "id = ?", to).Error; err != nil {
			return fmt.Errorf("failed to load allocation recipient: %w", err)
		}
		event.ToOrganization = recipient.Organization
	}

	return materializeOwners(tx, event.Devices, event.Components, to)
}

// ReleaseAllocation removes the recipient from the owner set of each
// device. A nil recipient releases every owner.
func ReleaseAllocation(devices []models.Device, from *uuid.UUID) []models.Device {
	released := make([]models.Device, len(devices))
	copy(released, devices)
	for i := range released {
		if from == nil {
			released[i].Owners = nil
			continue
		}
		owners := make([]models.Account, 0, len(released[i].Owners))
		for _, owner := range released[i].Owners {
			if owner.ID != *from {
				owners = append(owners, owner)
			}
		}
		released[i].Owners = owners
	}
	return released
}

// preDeallocate is the counterpart of preAllocate: the recipient's
// owner rows (or every owner row when no recipient is named) are
// deleted for the referenced devices and components, so a later
// allocation to the same account passes pruning again.
func (r *Runner) preDeallocate(tx *gorm.DB, event *models.Event, acting *models.Account) error {
	event.Components = componentsOf(event.Devices)

	ids := make([]uuid.UUID, 0, len(event.Devices)+len(event.Components))
	for _, device := range event.Devices {
		ids = append(ids, device.ID)
	}
	for _, component := range event.Components {
		ids = append(ids, component.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	query := tx.Where("device_id IN ?", ids)
	if event.ToAccountID != nil {
		query = query.Where("account_id = ?", *event.ToAccountID)
	}
	if err := query.Delete(&models.DeviceOwner{}).Error; err != nil {
		return fmt.Errorf("failed to release owners: %w", err)
	}

	event.Devices = ReleaseAllocation(event.Devices, event.ToAccountID)
	event.Components = ReleaseAllocation(event.Components, event.ToAccountID)
	return nil
}

func (r *Runner) preReceive(tx *gorm.DB, event *models.Event, acting *models.Account) error {
	if event.UnregisteredReceiver != nil {
		id, err := resolveInactiveAccount(tx, event.UnregisteredReceiver, acting)
		if err != nil {
			return err
		}
		event.ToAccountID = &id
		event.UnregisteredReceiver = nil
	}
	return nil
}

// materializeOwners adds the recipient to the owner set of every device
// and component. Duplicate pairs are ignored.
func materializeOwners(tx *gorm.DB, devices, components []models.Device, to uuid.UUID) error {
	rows := make([]models.DeviceOwner, 0, len(devices)+len(components))
	for _, device := range devices {
		rows = append(rows, models.DeviceOwner{DeviceID: device.ID, AccountID: to})
	}
	for _, component := range components {
		rows = append(rows, models.DeviceOwner{DeviceID: component.ID, AccountID: to})
	}
	if len(rows) == 0 {
		return nil
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to materialize owners: %w", err)
	}
	return nil
}

// componentsOf collects the components of the given devices
func componentsOf(devices []models.Device) []models.Device {
	var components []models.Device
	for _, device := range devices {
		components = append(components, device.Components...)
	}
	return components
}

// resolveInactiveAccount returns the id of the account with the given
// e-mail in the acting user's databases, creating an inactive placeholder
// when none exists.
func resolveInactiveAccount(tx *gorm.DB, unregistered *models.UnregisteredAccount, acting *models.Account) (uuid.UUID, error) {
	var existing models.Account
	err := tx.Where("email = ?", unregistered.Email).First(&existing).Error
	if err == nil {
		if !sharesDatabase(&existing, acting) {
			return uuid.Nil, ErrForeignAccount
		}
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, fmt.Errorf("failed to look up account by email: %w", err)
	}

	placeholder := models.Account{
		Email:        unregistered.Email,
		Name:         unregistered.Name,
		Organization: unregistered.Organization,
		Role:         models.RoleBasic,
		Active:       false,
		Databases:    acting.Databases,
	}
	if err := tx.Create(&placeholder).Error; err != nil {
		// Lost a race against a concurrent creation: fetch the winner
		var winner models.Account
		if lookupErr := tx.Where("email = ?", unregistered.Email).First(&winner).Error; lookupErr == nil {
			return winner.ID, nil
		}
		return uuid.Nil, fmt.Errorf("failed to create inactive account: %w", err)
	}
	return placeholder.ID, nil
}

func sharesDatabase(a, b *models.Account) bool {
	if a.Role == models.RoleSuperuser || b.Role == models.RoleSuperuser {
		return true
	}
	for _, db := range a.Databases {
		for _, other := range b.Databases {
			if db == other {
				return true
			}
		}
	}
	return false
}
