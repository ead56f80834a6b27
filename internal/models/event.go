package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// EventKind represents the type of a device event
type EventKind string

const (
	KindRegister      EventKind = "Register"
	KindAllocate      EventKind = "Allocate"
	KindDeallocate    EventKind = "Deallocate"
	KindReceive       EventKind = "Receive"
	KindReserve       EventKind = "Reserve"
	KindSell          EventKind = "Sell"
	KindTestHardDrive EventKind = "TestHardDrive"
	KindEraseBasic    EventKind = "EraseBasic"
	KindEraseSectors  EventKind = "EraseSectors"
)

// EventKinds lists every kind the API accepts
var EventKinds = []EventKind{
	KindRegister,
	KindAllocate,
	KindDeallocate,
	KindReceive,
	KindReserve,
	KindSell,
	KindTestHardDrive,
	KindEraseBasic,
	KindEraseSectors,
}

// forwardedKinds are the kinds pushed to the external registry
var forwardedKinds = map[EventKind]bool{
	KindRegister:   true,
	KindAllocate:   true,
	KindDeallocate: true,
	KindReceive:    true,
	KindSell:       true,
}

// ParseEventKind parses a string into an EventKind.
// Returns an error if the kind is unknown.
func ParseEventKind(name string) (EventKind, error) {
	name = strings.TrimSpace(name)
	for _, kind := range EventKinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %s", name)
}

// Forwarded reports whether events of this kind are sent to the registry
func (k EventKind) Forwarded() bool {
	return forwardedKinds[k]
}

// ResourcePath returns the URL path segment for the kind,
// e.g. TestHardDrive -> test-hard-drive
func (k EventKind) ResourcePath() string {
	var b strings.Builder
	for i, r := range string(k) {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type Event struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"_id"`
	Tenant string    `gorm:"not null;index" json:"-"`
	Kind   EventKind `gorm:"not null;index" json:"@type"`
	// Date is the user-specified moment the event happened; defaults to
	// the creation time.
	Date      time.Time `gorm:"not null" json:"date"`
	Secured   bool      `gorm:"not null;default:false" json:"secured"`
	Incidence bool      `gorm:"not null;default:false" json:"incidence"`
	Comment   string    `json:"comment,omitempty"`
	// ByUser / ByOrganization are stamped from the acting principal at
	// write time. ByOrganization is a materialized snapshot: later
	// changes to the user's organization do not alter it.
	ByUserID       *uuid.UUID `gorm:"type:uuid" json:"byUser,omitempty"`
	ByOrganization string     `json:"byOrganization,omitempty"`
	// ToAccountID is the recipient of Allocate/Receive events.
	ToAccountID    *uuid.UUID `gorm:"type:uuid" json:"to,omitempty"`
	ToOrganization string     `json:"toOrganization,omitempty"`
	// ForAccountID is the requester of Reserve events.
	ForAccountID *uuid.UUID `gorm:"type:uuid" json:"for,omitempty"`
	// Notify is the materialized recipient set of Reserve notifications.
	Notify  UUIDList `gorm:"type:jsonb" json:"notify,omitempty"`
	Payload JSONMap  `gorm:"type:jsonb" json:"payload,omitempty"`
	// DeviceID is set for single-device kinds (tests, erasures);
	// Devices holds the set for multi-device kinds.
	DeviceID   *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	Device     *Device    `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
	Devices    []Device   `gorm:"many2many:event_devices" json:"devices,omitempty"`
	Components []Device   `gorm:"many2many:event_components" json:"components,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;default:now()" json:"_created"`
	UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"_updated"`

	// UnregisteredTo / UnregisteredReceiver carry the raw recipient of an
	// Allocate/Receive whose account does not exist yet. The hook layer
	// resolves them to an account id and clears them; they are never
	// persisted.
	UnregisteredTo       *UnregisteredAccount `gorm:"-" json:"unregisteredTo,omitempty"`
	UnregisteredReceiver *UnregisteredAccount `gorm:"-" json:"unregisteredReceiver,omitempty"`
}

func (Event) TableName() string {
	return "events"
}

// UnregisteredAccount is an inline account payload identifying a
// recipient by e-mail instead of by id.
type UnregisteredAccount struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// DeviceOwner is a row of the device owner set
type DeviceOwner struct {
	DeviceID  uuid.UUID `gorm:"type:uuid;primary_key"`
	AccountID uuid.UUID `gorm:"type:uuid;primary_key"`
}

func (DeviceOwner) TableName() string {
	return "device_owners"
}
