package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eReuse/DeviceWare/internal/models"
)

func testDevice(hid string) models.Device {
	return models.Device{
		ID:   uuid.New(),
		Type: models.TypeComputer,
		HID:  hid,
	}
}

func TestTranslateRegisterFansOutPerDevice(t *testing.T) {
	userID := uuid.New()
	event := &models.Event{
		ID:       uuid.New(),
		Kind:     models.KindRegister,
		Date:     time.Now().UTC(),
		ByUserID: &userID,
		Devices: []models.Device{
			testDevice("acer-1-aspire"),
			testDevice("hp-2-elitebook"),
			testDevice("dell-3-latitude"),
		},
	}

	units := Translate(event, "acme", "http://localhost:8080")

	require.Len(t, units, 3)
	for i, unit := range units {
		assert.Equal(t, "Register", unit.Translated.Type)
		assert.Equal(t, event.Devices[i].ID, unit.Original.ID, "unit must reference the original device")
		require.NotNil(t, unit.Translated.Device)
		assert.Equal(t, event.Devices[i].HID, unit.Translated.Device.HID)
		assert.Equal(t, userID.String(), unit.Translated.ByUser)
		assert.Contains(t, unit.Translated.URL, event.ID.String())
	}
}

func TestTranslateSkipsDevicesWithoutIdentifier(t *testing.T) {
	event := &models.Event{
		ID:   uuid.New(),
		Kind: models.KindAllocate,
		Date: time.Now().UTC(),
		Devices: []models.Device{
			testDevice("acer-1-aspire"),
			testDevice(""), // not addressable externally
			testDevice("dell-3-latitude"),
		},
	}

	units := Translate(event, "acme", "http://localhost:8080")

	require.Len(t, units, 2, "only the device without hid is skipped")
	assert.Equal(t, "acer-1-aspire", units[0].Original.HID)
	assert.Equal(t, "dell-3-latitude", units[1].Original.HID)
}

func TestTranslateRegisterKeepsDevicesWithoutHID(t *testing.T) {
	// Register introduces the device to the registry, so a missing hid
	// does not make it unaddressable: the route is fixed.
	event := &models.Event{
		ID:      uuid.New(),
		Kind:    models.KindRegister,
		Date:    time.Now().UTC(),
		Devices: []models.Device{testDevice("")},
	}

	units := Translate(event, "acme", "http://localhost:8080")
	require.Len(t, units, 1)
}

func TestTranslateSingleDeviceReference(t *testing.T) {
	device := testDevice("seagate-9-barracuda")
	device.Type = models.TypeHardDrive
	event := &models.Event{
		ID:     uuid.New(),
		Kind:   models.KindSell,
		Date:   time.Now().UTC(),
		Device: &device,
	}

	units := Translate(event, "acme", "http://localhost:8080")

	require.Len(t, units, 1)
	assert.Equal(t, device.ID, units[0].Original.ID)
	assert.Equal(t, "HardDrive", units[0].Translated.Device.Type)
}

func TestTranslateEmbedsComponents(t *testing.T) {
	device := testDevice("acer-1-aspire")
	device.Components = []models.Device{
		{ID: uuid.New(), Type: models.TypeProcessor},
		{ID: uuid.New(), Type: models.TypeRAMModule},
	}
	event := &models.Event{
		ID:      uuid.New(),
		Kind:    models.KindRegister,
		Date:    time.Now().UTC(),
		Devices: []models.Device{device},
	}

	units := Translate(event, "acme", "http://localhost:8080")

	require.Len(t, units, 1)
	require.Len(t, units[0].Translated.Components, 2)
	assert.Equal(t, "Processor", units[0].Translated.Components[0].Type)
}

func TestTranslateNoDevices(t *testing.T) {
	event := &models.Event{
		ID:   uuid.New(),
		Kind: models.KindAllocate,
		Date: time.Now().UTC(),
	}
	assert.Empty(t, Translate(event, "acme", "http://localhost:8080"))
}
