package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eReuse/DeviceWare/internal/auth"
	"github.com/eReuse/DeviceWare/internal/hooks"
	"github.com/eReuse/DeviceWare/internal/models"
	"github.com/eReuse/DeviceWare/internal/registry"
)

// EventsHandler handles the event write path and event reads
type EventsHandler struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Hooks     *hooks.Runner
	Forwarder *registry.Forwarder
}

func NewEventsHandler(db *gorm.DB, logger *zap.Logger, runner *hooks.Runner, forwarder *registry.Forwarder) *EventsHandler {
	return &EventsHandler{
		DB:        db,
		Logger:    logger,
		Hooks:     runner,
		Forwarder: forwarder,
	}
}

type createEventRequest struct {
	Type                 string                      `json:"@type"`
	Date                 *time.Time                  `json:"date"`
	Secured              bool                        `json:"secured"`
	Incidence            bool                        `json:"incidence"`
	Comment              string                      `json:"comment"`
	Device               string                      `json:"device"`
	Devices              []string                    `json:"devices"`
	To                   string                      `json:"to"`
	For                  string                      `json:"for"`
	UnregisteredTo       *models.UnregisteredAccount `json:"unregisteredTo"`
	UnregisteredReceiver *models.UnregisteredAccount `json:"unregisteredReceiver"`
	Payload              models.JSONMap              `json:"payload"`
}

// Create handles POST /:db/events
func (h *EventsHandler) Create(c *fiber.Ctx) error {
	tenant := c.Params("db")
	acting := auth.AccountFromCtx(c)

	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	kind, err := models.ParseEventKind(req.Type)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	event := &models.Event{
		Tenant:               tenant,
		Kind:                 kind,
		Secured:              req.Secured,
		Incidence:            req.Incidence,
		Comment:              req.Comment,
		Payload:              req.Payload,
		UnregisteredTo:       req.UnregisteredTo,
		UnregisteredReceiver: req.UnregisteredReceiver,
	}
	if req.Date != nil {
		event.Date = *req.Date
	} else {
		event.Date = time.Now().UTC()
	}

	if err := h.resolveReferences(event, &req, tenant); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := h.Hooks.PreWrite(tx, event, acting); err != nil {
			return err
		}
		return createEvent(tx, event)
	})
	if err != nil {
		return h.writeError(c, event, err)
	}

	// Post-write side effects are fire-and-forget: mail fan-out and
	// registry forwarding stay invisible to the API caller.
	h.Hooks.PostWrite(event, acting)
	if event.Kind.Forwarded() {
		h.Forwarder.Enqueue(event.ID, tenant)
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// resolveReferences loads the devices an event points at, with their
// owners and components, scoped to the tenant.
func (h *EventsHandler) resolveReferences(event *models.Event, req *createEventRequest, tenant string) error {
	if req.Device != "" {
		id, err := uuid.Parse(req.Device)
		if err != nil {
			return errors.New("invalid device id")
		}
		var device models.Device
		err = h.DB.Where("id = ? AND tenant = ?", id, tenant).
			Preload("Owners").
			Preload("Components").
			First(&device).Error
		if err != nil {
			return errors.New("device not found: " + req.Device)
		}
		event.DeviceID = &device.ID
		event.Device = &device
	}

	if len(req.Devices) > 0 {
		ids := make([]uuid.UUID, 0, len(req.Devices))
		for _, raw := range req.Devices {
			id, err := uuid.Parse(raw)
			if err != nil {
				return errors.New("invalid device id: " + raw)
			}
			ids = append(ids, id)
		}
		var devices []models.Device
		err := h.DB.Where("id IN ? AND tenant = ?", ids, tenant).
			Preload("Owners").
			Preload("Components").
			Find(&devices).Error
		if err != nil {
			return errors.New("failed to load devices")
		}
		if len(devices) != len(ids) {
			return errors.New("one or more devices not found")
		}
		event.Devices = devices
	}

	if req.To != "" {
		id, err := uuid.Parse(req.To)
		if err != nil {
			return errors.New("invalid recipient id")
		}
		event.ToAccountID = &id
	}
	if req.For != "" {
		id, err := uuid.Parse(req.For)
		if err != nil {
			return errors.New("invalid requester id")
		}
		event.ForAccountID = &id
	}
	return nil
}

// createEvent stores the event row and its device references. The
// devices themselves are never touched here.
func createEvent(tx *gorm.DB, event *models.Event) error {
	if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
		return err
	}

	for _, device := range event.Devices {
		err := tx.Exec("INSERT INTO event_devices (event_id, device_id) VALUES (?, ?)",
			event.ID, device.ID).Error
		if err != nil {
			return err
		}
	}
	for _, component := range event.Components {
		err := tx.Exec("INSERT INTO event_components (event_id, device_id) VALUES (?, ?)",
			event.ID, component.ID).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// writeError maps hook failures to API responses. Domain rejections are
// user errors; everything else is a 500.
func (h *EventsHandler) writeError(c *fiber.Ctx, event *models.Event, err error) error {
	switch {
	case errors.Is(err, hooks.ErrAlreadyAllocated), errors.Is(err, hooks.ErrForeignAccount):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		h.Logger.Error("Failed to create event",
			zap.String("tenant", event.Tenant),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create event",
		})
	}
}

// embeddedParam mirrors the ?embedded={"device":1,...} query parameter
type embeddedParam struct {
	Device     int `json:"device"`
	Devices    int `json:"devices"`
	Components int `json:"components"`
}

// Get handles GET /:db/events/:id. The registry worker consumes this
// endpoint with all references embedded.
func (h *EventsHandler) Get(c *fiber.Ctx) error {
	tenant := c.Params("db")

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid event id",
		})
	}

	// Absent parameter embeds everything
	embedded := embeddedParam{Device: 1, Devices: 1, Components: 1}
	if raw := c.Query("embedded"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &embedded); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid embedded parameter",
			})
		}
	}

	query := h.DB.Where("id = ? AND tenant = ?", id, tenant)
	if embedded.Device == 1 {
		query = query.Preload("Device").Preload("Device.Components")
	}
	if embedded.Devices == 1 {
		query = query.Preload("Devices").Preload("Devices.Components")
	}
	if embedded.Components == 1 {
		query = query.Preload("Components")
	}

	var event models.Event
	if err := query.First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "event not found",
			})
		}
		h.Logger.Error("Failed to load event",
			zap.String("event_id", id.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch event",
		})
	}

	return c.JSON(event)
}

// EventsResponse represents the response structure for GET /:db/events
type EventsResponse struct {
	Events  []models.Event `json:"events"`
	HasMore bool           `json:"has_more"`
}

// List handles GET /:db/events, newest first
func (h *EventsHandler) List(c *fiber.Ctx) error {
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
		Order("created_at DESC").
		Limit(limit + 1).
		Offset(offset)

	if kind := c.Query("@type"); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		h.Logger.Error("Failed to query events",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch events",
		})
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	return c.JSON(EventsResponse{Events: events, HasMore: hasMore})
}
