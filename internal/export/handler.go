package export

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/models"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the spreadsheet export endpoint
type Handler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Logger: logger}
}

// Devices handles GET /:db/export/devices
// Query parameters:
//   - ids (optional, repeatable): restrict the export to these devices
//   - type (optional): "brief" or "detailed" (default)
func (h *Handler) Devices(c *fiber.Ctx) error {
	tenant := c.Params("db")
	brief := c.Query("type", "detailed") == "brief"

	var ids []uuid.UUID
	for _, raw := range c.Context().QueryArgs().PeekMulti("ids") {
		id, err := uuid.Parse(string(raw))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid device id: " + string(raw),
			})
		}
		ids = append(ids, id)
	}

	// Components and placeholders get no row of their own
	query := h.DB.Where("tenant = ? AND type = ? AND placeholder = false", tenant, models.TypeComputer).
		Preload("Components").
		Order("created_at DESC")
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var devices []models.Device
	if err := query.Find(&devices).Error; err != nil {
		h.Logger.Error("Failed to load devices for export",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch devices",
		})
	}

	states, err := h.latestEventStates(devices)
	if err != nil {
		h.Logger.Warn("Failed to load device states, exporting without them",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
	}

	erasures, err := h.componentErasures(devices)
	if err != nil {
		h.Logger.Warn("Failed to load erasure states, exporting without them",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
	}

	sheet := NewTranslator(brief).Translate(devices, states, erasures)

	book, err := writeWorkbook("Devices", sheet)
	if err != nil {
		h.Logger.Error("Failed to build spreadsheet",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to build spreadsheet",
		})
	}

	c.Set(fiber.HeaderContentType, xlsxMIME)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="devices.xlsx"`)
	return c.Send(book)
}

// latestEventStates resolves each device's newest event kind
func (h *Handler) latestEventStates(devices []models.Device) (map[uuid.UUID]string, error) {
	states := make(map[uuid.UUID]string, len(devices))
	if len(devices) == 0 {
		return states, nil
	}

	ids := make([]uuid.UUID, 0, len(devices))
	for _, device := range devices {
		ids = append(ids, device.ID)
	}

	type stateRow struct {
		DeviceID uuid.UUID
		Kind     string
	}
	var rows []stateRow
	err := h.DB.Table("events").
		Select("event_devices.device_id, events.kind").
		Joins("JOIN event_devices ON event_devices.event_id = events.id").
		Where("event_devices.device_id IN ?", ids).
		Order("events.date DESC").
		Scan(&rows).Error
	if err != nil {
		return states, err
	}

	// Rows are newest first; keep the first kind seen per device
	for _, row := range rows {
		if _, ok := states[row.DeviceID]; !ok {
			states[row.DeviceID] = row.Kind
		}
	}
	return states, nil
}

// componentErasures resolves the newest erasure event kind per hard
// drive component
func (h *Handler) componentErasures(devices []models.Device) (map[uuid.UUID]string, error) {
	erasures := map[uuid.UUID]string{}

	var ids []uuid.UUID
	for _, device := range devices {
		for _, component := range device.Components {
			if component.Type == models.TypeHardDrive {
				ids = append(ids, component.ID)
			}
		}
	}
	if len(ids) == 0 {
		return erasures, nil
	}

	type eraseRow struct {
		DeviceID uuid.UUID
		Kind     string
	}
	var rows []eraseRow
	err := h.DB.Table("events").
		Select("events.device_id, events.kind").
		Where("events.device_id IN ? AND events.kind IN ?", ids,
			[]models.EventKind{models.KindEraseBasic, models.KindEraseSectors}).
		Order("events.date DESC").
		Scan(&rows).Error
	if err != nil {
		return erasures, err
	}

	for _, row := range rows {
		if _, ok := erasures[row.DeviceID]; !ok {
			erasures[row.DeviceID] = row.Kind
		}
	}
	return erasures, nil
}

// writeWorkbook renders one sheet into an XLSX file
func writeWorkbook(name string, sheet Sheet) ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), name); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(sheet.Headers))
	for i, h := range sheet.Headers {
		header[i] = h
	}
	if err := book.SetSheetRow(name, "A1", &header); err != nil {
		return nil, err
	}

	for i, row := range sheet.Rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := book.SetSheetRow(name, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
