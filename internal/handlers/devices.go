package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/models"
)

// DevicesHandler handles device reads
type DevicesHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewDevicesHandler(db *gorm.DB, logger *zap.Logger) *DevicesHandler {
	return &DevicesHandler{DB: db, Logger: logger}
}

// DevicesResponse represents the response structure for GET /:db/devices
type DevicesResponse struct {
	Devices []models.Device `json:"devices"`
	HasMore bool            `json:"has_more"`
}

// List handles GET /:db/devices
// Query parameters:
//   - type (optional): filter by device type
//   - limit (optional, default 25), offset (optional, default 0)
func (h *DevicesHandler) List(c *fiber.Ctx) error {
	tenant := c.Params("db")

	limit := 25
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offset must be a non-negative integer",
			})
		}
		offset = parsed
	}

	query := h.DB.Where("tenant = ?", tenant).
		Preload("Components").
		Order("created_at DESC").
		Limit(limit + 1). // Fetch one extra to determine has_more
		Offset(offset)

	if deviceType := c.Query("type"); deviceType != "" {
		query = query.Where("type = ?", deviceType)
	}

	var devices []models.Device
	if err := query.Find(&devices).Error; err != nil {
		h.Logger.Error("Failed to query devices",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch devices",
		})
	}

	hasMore := len(devices) > limit
	if hasMore {
		devices = devices[:limit]
	}

	return c.JSON(DevicesResponse{Devices: devices, HasMore: hasMore})
}

type createDeviceRequest struct {
	Type               string                `json:"@type"`
	HID                string                `json:"hid"`
	LabelID            string                `json:"labelId"`
	SerialNumber       string                `json:"serialNumber"`
	Model              string                `json:"model"`
	Manufacturer       string                `json:"manufacturer"`
	ProcessorModel     string                `json:"processorModel"`
	TotalRAMSize       float64               `json:"totalRamSize"`
	TotalHardDriveSize float64               `json:"totalHardDriveSize"`
	Placeholder        bool                  `json:"placeholder"`
	Components         []createDeviceRequest `json:"components"`
}

// Create handles POST /:db/devices. Components may be nested; they are
// created alongside their parent.
func (h *DevicesHandler) Create(c *fiber.Ctx) error {
	tenant := c.Params("db")

	var req createDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	device, err := buildDevice(&req, tenant)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(device).Error; err != nil {
			return err
		}
		for i := range req.Components {
			component, err := buildDevice(&req.Components[i], tenant)
			if err != nil {
				return err
			}
			component.ParentID = &device.ID
			if err := tx.Create(component).Error; err != nil {
				return err
			}
			device.Components = append(device.Components, *component)
		}
		return nil
	})
	if err != nil {
		h.Logger.Error("Failed to create device",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create device",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(device)
}

func buildDevice(req *createDeviceRequest, tenant string) (*models.Device, error) {
	deviceType := models.DeviceType(req.Type)
	valid := deviceType == models.TypeComputer
	for _, t := range models.ComponentTypes {
		if deviceType == t {
			valid = true
		}
	}
	if !valid {
		return nil, fmt.Errorf("unknown device type: %s", req.Type)
	}

	device := &models.Device{
		Tenant:             tenant,
		Type:               deviceType,
		HID:                req.HID,
		LabelID:            req.LabelID,
		SerialNumber:       req.SerialNumber,
		Model:              req.Model,
		Manufacturer:       req.Manufacturer,
		ProcessorModel:     req.ProcessorModel,
		TotalRAMSize:       req.TotalRAMSize,
		TotalHardDriveSize: req.TotalHardDriveSize,
		Placeholder:        req.Placeholder,
	}
	if device.HID == "" {
		device.HID = ComputeHID(req.Manufacturer, req.SerialNumber, req.Model)
	}
	return device, nil
}

// ComputeHID derives the human identifier the external registry keys
// devices by: manufacturer-serial-model, lowercased and hyphenated.
// Returns empty when any part is missing (placeholders).
func ComputeHID(manufacturer, serialNumber, model string) string {
	if manufacturer == "" || serialNumber == "" || model == "" {
		return ""
	}
	normalize := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), "-")
	}
	return normalize(manufacturer) + "-" + normalize(serialNumber) + "-" + normalize(model)
}

// Get handles GET /:db/devices/:id
func (h *DevicesHandler) Get(c *fiber.Ctx) error {
	tenant := c.Params("db")

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid device id",
		})
	}

	// Absent parameter embeds everything
	embedded := embeddedParam{Components: 1}
	if raw := c.Query("embedded"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &embedded); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid embedded parameter",
			})
		}
	}

	query := h.DB.Where("id = ? AND tenant = ?", id, tenant).Preload("Owners")
	if embedded.Components == 1 {
		query = query.Preload("Components")
	}

	var device models.Device
	err = query.First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "device not found",
			})
		}
		h.Logger.Error("Failed to load device",
			zap.String("device_id", id.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch device",
		})
	}

	return c.JSON(device)
}
