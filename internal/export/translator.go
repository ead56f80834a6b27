// Package export turns devices and their event history into
// spreadsheets.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eReuse/DeviceWare/internal/models"
)

// Translator maps devices into ordered spreadsheet rows. In brief mode
// identifying columns (label, serial numbers) are left out.
type Translator struct {
	brief    bool
	columns  []column
	states   deviceStates
	erasures deviceStates
}

type column struct {
	name  string
	value func(t *Translator, d *models.Device) string
}

// NewTranslator builds the column layout once; the order is the order
// of the spreadsheet.
func NewTranslator(brief bool) *Translator {
	t := &Translator{brief: brief}
	add := func(name string, value func(t *Translator, d *models.Device) string) {
		t.columns = append(t.columns, column{name: name, value: value})
	}

	add("Identifier", func(_ *Translator, d *models.Device) string { return d.ID.String() })
	add("Type", func(_ *Translator, d *models.Device) string { return string(d.Type) })
	if !brief {
		add("Label ID", func(_ *Translator, d *models.Device) string { return d.LabelID })
		add("Giver ID", func(_ *Translator, d *models.Device) string { return d.GiverID })
		add("Refurbisher ID", func(_ *Translator, d *models.Device) string { return d.RefurbisherID })
		add("Serial Number", func(_ *Translator, d *models.Device) string { return d.SerialNumber })
	}
	add("Model", func(_ *Translator, d *models.Device) string { return d.Model })
	add("Manufacturer", func(_ *Translator, d *models.Device) string { return d.Manufacturer })
	add("State", func(t *Translator, d *models.Device) string { return t.states[d.ID] })
	if !brief {
		add("Registered in", func(_ *Translator, d *models.Device) string {
			return d.CreatedAt.UTC().Format(time.RFC3339)
		})
	}
	add("Processor", func(_ *Translator, d *models.Device) string { return d.ProcessorModel })
	add("RAM (GB)", func(_ *Translator, d *models.Device) string {
		return strconv.FormatFloat(float64(int(d.TotalRAMSize)), 'f', -1, 64)
	})
	add("HDD (MB)", func(_ *Translator, d *models.Device) string {
		return strconv.FormatFloat(float64(int(d.TotalHardDriveSize)), 'f', -1, 64)
	})
	return t
}

// states maps device id to its latest event label, filled per Translate call
type deviceStates = map[uuid.UUID]string

// Sheet is one translated spreadsheet page
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// Translate renders the devices into a sheet. Component columns are
// appended after the fixed ones: each component becomes a "<Type> <n>"
// column with its summary plus per-attribute columns, and hard drives
// with a recorded erasure get an "erasure" column. The erasures map
// holds the latest erasure event kind per hard drive.
func (t *Translator) Translate(devices []models.Device, states, erasures deviceStates) Sheet {
	t.states = states
	if t.states == nil {
		t.states = deviceStates{}
	}
	t.erasures = erasures
	if t.erasures == nil {
		t.erasures = deviceStates{}
	}

	sheet := Sheet{}
	for _, col := range t.columns {
		sheet.Headers = append(sheet.Headers, col.name)
	}

	seen := map[string]int{} // component header -> column index
	for i := range devices {
		device := &devices[i]
		row := make([]string, len(sheet.Headers))
		for j, col := range t.columns {
			row[j] = scrub(col.value(t, device))
		}

		perType := map[models.DeviceType]int{}
		for k := range device.Components {
			component := &device.Components[k]
			perType[component.Type]++
			header := fmt.Sprintf("%s %d", component.Type, perType[component.Type])

			row = t.placeComponent(&sheet, seen, row, header, scrub(t.componentSummary(component)))
			row = t.placeComponent(&sheet, seen, row, header+" system id", component.ID.String())
			if !t.brief {
				row = t.placeComponent(&sheet, seen, row, header+" serial number", scrub(component.SerialNumber))
			}
			row = t.placeComponent(&sheet, seen, row, header+" model", scrub(component.Model))
			row = t.placeComponent(&sheet, seen, row, header+" manufacturer", scrub(component.Manufacturer))
			if component.Type == models.TypeHardDrive {
				row = t.placeComponent(&sheet, seen, row, header+" erasure", t.erasures[component.ID])
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	// Pad earlier rows that predate later-discovered component columns
	for i := range sheet.Rows {
		for len(sheet.Rows[i]) < len(sheet.Headers) {
			sheet.Rows[i] = append(sheet.Rows[i], "")
		}
	}
	return sheet
}

// placeComponent writes a value under the given header, registering the
// header as a new column the first time it appears.
func (t *Translator) placeComponent(sheet *Sheet, seen map[string]int, row []string, header, value string) []string {
	idx, ok := seen[header]
	if !ok {
		idx = len(sheet.Headers)
		seen[header] = idx
		sheet.Headers = append(sheet.Headers, header)
	}
	for len(row) <= idx {
		row = append(row, "")
	}
	row[idx] = value
	return row
}

func (t *Translator) componentSummary(component *models.Device) string {
	parts := make([]string, 0, 4)
	if !t.brief {
		parts = append(parts, component.ID.String())
		if component.SerialNumber != "" {
			parts = append(parts, component.SerialNumber)
		}
	}
	if component.Model != "" {
		parts = append(parts, component.Model)
	}
	if component.Manufacturer != "" {
		parts = append(parts, component.Manufacturer)
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

// scrub replaces values carrying characters spreadsheet encoders reject
func scrub(value string) string {
	for _, r := range value {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return "**"
		}
	}
	return value
}
