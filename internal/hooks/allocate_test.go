package hooks

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eReuse/DeviceWare/internal/models"
)

func deviceOwnedBy(owners ...uuid.UUID) models.Device {
	device := models.Device{ID: uuid.New(), Type: models.TypeComputer}
	for _, owner := range owners {
		device.Owners = append(device.Owners, models.Account{ID: owner})
	}
	return device
}

func TestPruneAllocationDropsAlreadyOwnedDevices(t *testing.T) {
	recipient := uuid.New()
	owned := deviceOwnedBy(recipient)
	free := deviceOwnedBy()

	kept, err := PruneAllocation([]models.Device{owned, free}, recipient)

	require.NoError(t, err)
	require.Len(t, kept, 1, "the already-owned device is silently excluded")
	assert.Equal(t, free.ID, kept[0].ID)
}

func TestPruneAllocationRejectsFullyOwnedSet(t *testing.T) {
	recipient := uuid.New()
	devices := []models.Device{deviceOwnedBy(recipient), deviceOwnedBy(recipient)}

	kept, err := PruneAllocation(devices, recipient)

	assert.ErrorIs(t, err, ErrAlreadyAllocated)
	assert.Nil(t, kept)
}

func TestPruneAllocationKeepsDevicesOwnedByOthers(t *testing.T) {
	recipient := uuid.New()
	other := uuid.New()
	devices := []models.Device{deviceOwnedBy(other), deviceOwnedBy(other, uuid.New())}

	kept, err := PruneAllocation(devices, recipient)

	require.NoError(t, err)
	assert.Len(t, kept, 2, "ownership by other accounts does not block allocation")
}

func TestReleaseAllocationAllowsReallocation(t *testing.T) {
	recipient := uuid.New()
	device := deviceOwnedBy(recipient)

	_, err := PruneAllocation([]models.Device{device}, recipient)
	require.ErrorIs(t, err, ErrAlreadyAllocated)

	// After deallocation the same account can be allocated again
	released := ReleaseAllocation([]models.Device{device}, &recipient)
	kept, err := PruneAllocation(released, recipient)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestReleaseAllocationKeepsOtherOwners(t *testing.T) {
	recipient := uuid.New()
	other := uuid.New()
	device := deviceOwnedBy(recipient, other)

	released := ReleaseAllocation([]models.Device{device}, &recipient)

	require.Len(t, released[0].Owners, 1)
	assert.Equal(t, other, released[0].Owners[0].ID)
}

func TestReleaseAllocationWithoutRecipient(t *testing.T) {
	device := deviceOwnedBy(uuid.New(), uuid.New())

	released := ReleaseAllocation([]models.Device{device}, nil)

	assert.Empty(t, released[0].Owners, "a deallocation without a recipient releases every owner")
}

func TestRunnerWiresOwnershipHooks(t *testing.T) {
	r := NewRunner(nil, zap.NewNop(), nil, "")

	for _, kind := range []models.EventKind{
		models.KindAllocate,
		models.KindDeallocate,
		models.KindReceive,
		models.KindReserve,
	} {
		_, ok := r.pre[kind]
		assert.True(t, ok, "kind %s must have a pre-write hook", kind)
	}
}

func TestComponentsOfCollectsAllComponents(t *testing.T) {
	device := deviceOwnedBy()
	device.Components = []models.Device{
		{ID: uuid.New(), Type: models.TypeProcessor},
		{ID: uuid.New(), Type: models.TypeHardDrive},
	}
	other := deviceOwnedBy()
	other.Components = []models.Device{{ID: uuid.New(), Type: models.TypeRAMModule}}

	components := componentsOf([]models.Device{device, other})
	assert.Len(t, components, 3)
}

func TestSharesDatabase(t *testing.T) {
	a := &models.Account{Role: models.RoleBasic, Databases: models.StringList{"acme", "umbrella"}}
	b := &models.Account{Role: models.RoleAdmin, Databases: models.StringList{"umbrella"}}
	c := &models.Account{Role: models.RoleBasic, Databases: models.StringList{"wayne"}}
	super := &models.Account{Role: models.RoleSuperuser}

	assert.True(t, sharesDatabase(a, b))
	assert.False(t, sharesDatabase(a, c))
	assert.True(t, sharesDatabase(c, super), "superusers reach every database")
}
