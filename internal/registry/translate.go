package registry

import (
	"fmt"
	"time"

	"github.com/eReuse/DeviceWare/internal/models"
)

// TranslatedDevice is the external registry's view of a device
type TranslatedDevice struct {
	ID   string `json:"id"`
	HID  string `json:"hid,omitempty"`
	Type string `json:"@type"`
	URL  string `json:"url"`
}

// TranslatedEvent is the external registry's view of an event
type TranslatedEvent struct {
	Type       string             `json:"@type"`
	URL        string             `json:"url"`
	Date       time.Time          `json:"date"`
	ByUser     string             `json:"byUser,omitempty"`
	Device     *TranslatedDevice  `json:"device,omitempty"`
	Components []TranslatedDevice `json:"components,omitempty"`
}

// Unit pairs a translated event with the original device it refers to,
// so callers can recover the device identifier for URL construction.
type Unit struct {
	Translated TranslatedEvent
	Original   models.Device
}

// Translate maps one internal event to zero or more registry events.
// An event referencing N devices yields up to N units, one per device;
// devices without a resolvable external identifier are skipped
// individually, never the whole batch.
func Translate(event *models.Event, tenant, baseURL string) []Unit {
	devices := referencedDevices(event)

	units := make([]Unit, 0, len(devices))
	for _, device := range devices {
		if device.HID == "" && event.Kind != models.KindRegister {
			continue
		}
		translated := TranslatedEvent{
			Type: string(event.Kind),
			URL:  eventURL(baseURL, tenant, event),
			Date: event.Date,
		}
		if event.ByUserID != nil {
			translated.ByUser = event.ByUserID.String()
		}
		translatedDevice := translateDevice(&device, baseURL, tenant)
		translated.Device = &translatedDevice
		for _, component := range device.Components {
			translated.Components = append(translated.Components, translateDevice(&component, baseURL, tenant))
		}
		units = append(units, Unit{Translated: translated, Original: device})
	}
	return units
}

// referencedDevices collects the devices an event points at, whether
// through its single device reference or its device set.
func referencedDevices(event *models.Event) []models.Device {
	var devices []models.Device
	if event.Device != nil {
		devices = append(devices, *event.Device)
	}
	devices = append(devices, event.Devices...)
	return devices
}

func translateDevice(device *models.Device, baseURL, tenant string) TranslatedDevice {
	return TranslatedDevice{
		ID:   device.ID.String(),
		HID:  device.HID,
		Type: string(device.Type),
		URL:  deviceURL(baseURL, tenant, device),
	}
}

func eventURL(baseURL, tenant string, event *models.Event) string {
	return fmt.Sprintf("%s/%s/events/%s", baseURL, tenant, event.ID)
}

func deviceURL(baseURL, tenant string, device *models.Device) string {
	return fmt.Sprintf("%s/%s/devices/%s", baseURL, tenant, device.ID)
}
