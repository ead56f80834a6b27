package export

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eReuse/DeviceWare/internal/models"
)

func exportDevice(serial string) models.Device {
	return models.Device{
		ID:           uuid.New(),
		Type:         models.TypeComputer,
		SerialNumber: serial,
		Model:        "Latitude 5400",
		Manufacturer: "Dell",
	}
}

func headerIndex(t *testing.T, sheet Sheet, name string) int {
	t.Helper()
	for i, h := range sheet.Headers {
		if h == name {
			return i
		}
	}
	t.Fatalf("header %q not found in %v", name, sheet.Headers)
	return -1
}

func TestTranslateDetailedHeaders(t *testing.T) {
	sheet := NewTranslator(false).Translate([]models.Device{exportDevice("S1")}, nil, nil)

	assert.Equal(t, []string{
		"Identifier", "Type", "Label ID", "Giver ID", "Refurbisher ID",
		"Serial Number", "Model", "Manufacturer", "State", "Registered in",
		"Processor", "RAM (GB)", "HDD (MB)",
	}, sheet.Headers)
}

func TestTranslateBriefHidesIdentifyingColumns(t *testing.T) {
	sheet := NewTranslator(true).Translate([]models.Device{exportDevice("S1")}, nil, nil)

	assert.NotContains(t, sheet.Headers, "Serial Number")
	assert.NotContains(t, sheet.Headers, "Label ID")
	assert.NotContains(t, sheet.Headers, "Registered in")
	assert.Contains(t, sheet.Headers, "Model")
}

func TestTranslateComponentColumns(t *testing.T) {
	first := exportDevice("S1")
	first.Components = []models.Device{
		{ID: uuid.New(), Type: models.TypeHardDrive, Model: "ST1000", Manufacturer: "Seagate"},
		{ID: uuid.New(), Type: models.TypeHardDrive, Model: "WD10", Manufacturer: "Western Digital"},
		{ID: uuid.New(), Type: models.TypeRAMModule, Model: "CT8G4"},
	}
	second := exportDevice("S2")

	sheet := NewTranslator(true).Translate([]models.Device{first, second}, nil, nil)

	require.Len(t, sheet.Rows, 2)
	assert.Contains(t, sheet.Headers, "HardDrive 1")
	assert.Contains(t, sheet.Headers, "HardDrive 2")
	assert.Contains(t, sheet.Headers, "RAMModule 1")
	assert.Contains(t, sheet.Headers, "HardDrive 1 system id")

	hd1 := headerIndex(t, sheet, "HardDrive 1")
	assert.Equal(t, "ST1000 Seagate", sheet.Rows[0][hd1])
	assert.Equal(t, first.Components[0].ID.String(), sheet.Rows[0][headerIndex(t, sheet, "HardDrive 1 system id")])

	// The second computer has no components; its row is padded to width
	require.Len(t, sheet.Rows[1], len(sheet.Headers))
	assert.Equal(t, "", sheet.Rows[1][hd1])
}

func TestTranslateComponentColumnPadding(t *testing.T) {
	bare := exportDevice("S1")
	loaded := exportDevice("S2")
	loaded.Components = []models.Device{
		{ID: uuid.New(), Type: models.TypeProcessor, Model: "i5-8265U", Manufacturer: "Intel"},
	}

	// The first row is written before the component column exists
	sheet := NewTranslator(true).Translate([]models.Device{bare, loaded}, nil, nil)

	require.Len(t, sheet.Rows[0], len(sheet.Headers))
	idx := headerIndex(t, sheet, "Processor 1")
	assert.Equal(t, "", sheet.Rows[0][idx])
	assert.Equal(t, "i5-8265U Intel", sheet.Rows[1][idx])
}

func TestTranslateDetailedComponentSummary(t *testing.T) {
	device := exportDevice("S1")
	componentID := uuid.New()
	device.Components = []models.Device{
		{ID: componentID, Type: models.TypeHardDrive, SerialNumber: "HD-9", Model: "ST1000", Manufacturer: "Seagate"},
	}

	sheet := NewTranslator(false).Translate([]models.Device{device}, nil, nil)

	idx := headerIndex(t, sheet, "HardDrive 1")
	assert.Equal(t, componentID.String()+" HD-9 ST1000 Seagate", sheet.Rows[0][idx])
}

func TestTranslateComponentAttributeColumns(t *testing.T) {
	device := exportDevice("S1")
	device.Components = []models.Device{
		{ID: uuid.New(), Type: models.TypeProcessor, SerialNumber: "P-7", Model: "i5-8265U", Manufacturer: "Intel"},
	}

	detailed := NewTranslator(false).Translate([]models.Device{device}, nil, nil)
	assert.Equal(t, "P-7", detailed.Rows[0][headerIndex(t, detailed, "Processor 1 serial number")])
	assert.Equal(t, "i5-8265U", detailed.Rows[0][headerIndex(t, detailed, "Processor 1 model")])
	assert.Equal(t, "Intel", detailed.Rows[0][headerIndex(t, detailed, "Processor 1 manufacturer")])

	brief := NewTranslator(true).Translate([]models.Device{device}, nil, nil)
	assert.NotContains(t, brief.Headers, "Processor 1 serial number")
	assert.Contains(t, brief.Headers, "Processor 1 model")
	assert.Contains(t, brief.Headers, "Processor 1 manufacturer")
}

func TestTranslateErasureColumn(t *testing.T) {
	erased := models.Device{ID: uuid.New(), Type: models.TypeHardDrive, Model: "ST1000"}
	intact := models.Device{ID: uuid.New(), Type: models.TypeHardDrive, Model: "WD10"}
	device := exportDevice("S1")
	device.Components = []models.Device{erased, intact,
		{ID: uuid.New(), Type: models.TypeProcessor, Model: "i5-8265U"},
	}
	erasures := map[uuid.UUID]string{erased.ID: "EraseSectors"}

	sheet := NewTranslator(true).Translate([]models.Device{device}, nil, erasures)

	assert.Equal(t, "EraseSectors", sheet.Rows[0][headerIndex(t, sheet, "HardDrive 1 erasure")])
	assert.Equal(t, "", sheet.Rows[0][headerIndex(t, sheet, "HardDrive 2 erasure")])
	assert.NotContains(t, sheet.Headers, "Processor 1 erasure",
		"only hard drives carry an erasure column")
}

func TestTranslateStateColumn(t *testing.T) {
	device := exportDevice("S1")
	states := map[uuid.UUID]string{device.ID: "Allocate"}

	sheet := NewTranslator(true).Translate([]models.Device{device}, states, nil)

	assert.Equal(t, "Allocate", sheet.Rows[0][headerIndex(t, sheet, "State")])
}

func TestScrub(t *testing.T) {
	assert.Equal(t, "Latitude 5400", scrub("Latitude 5400"))
	assert.Equal(t, "line\nbreak", scrub("line\nbreak"))
	assert.Equal(t, "**", scrub("bad\x01value"))
}
