package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType represents the kind of hardware a device record describes
type DeviceType string

const (
	TypeComputer    DeviceType = "Computer"
	TypeMotherboard DeviceType = "Motherboard"
	TypeProcessor   DeviceType = "Processor"
	TypeRAMModule   DeviceType = "RAMModule"
	TypeHardDrive   DeviceType = "HardDrive"
)

// ComponentTypes are the device types that live inside a computer
var ComponentTypes = []DeviceType{TypeMotherboard, TypeProcessor, TypeRAMModule, TypeHardDrive}

// IsComponent reports whether the type is a component rather than a full device
func (t DeviceType) IsComponent() bool {
	for _, c := range ComponentTypes {
		if t == c {
			return true
		}
	}
	return false
}

type Device struct {
	ID     uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"_id"`
	Tenant string     `gorm:"not null;index" json:"-"`
	Type   DeviceType `gorm:"not null" json:"@type"`
	// HID is the human identifier (manufacturer-model-serial) used when
	// talking to the external registry, whose id space differs from ours.
	// Placeholder devices may not have one yet.
	HID                string     `gorm:"index" json:"hid,omitempty"`
	ParentID           *uuid.UUID `gorm:"type:uuid;index" json:"parent,omitempty"`
	LabelID            string     `json:"labelId,omitempty"`
	GiverID            string     `json:"gid,omitempty"`
	RefurbisherID      string     `json:"rid,omitempty"`
	SerialNumber       string     `json:"serialNumber,omitempty"`
	Model              string     `json:"model,omitempty"`
	Manufacturer       string     `json:"manufacturer,omitempty"`
	ProcessorModel     string     `json:"processorModel,omitempty"`
	TotalRAMSize       float64    `json:"totalRamSize,omitempty"`
	TotalHardDriveSize float64    `json:"totalHardDriveSize,omitempty"`
	Placeholder        bool       `gorm:"not null;default:false" json:"placeholder,omitempty"`
	Owners             []Account  `gorm:"many2many:device_owners" json:"owners,omitempty"`
	Components         []Device   `gorm:"foreignKey:ParentID" json:"components,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"_created"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"_updated"`
}

func (Device) TableName() string {
	return "devices"
}

// OwnedBy reports whether the account is already in the device's owner set
func (d *Device) OwnedBy(accountID uuid.UUID) bool {
	for _, o := range d.Owners {
		if o.ID == accountID {
			return true
		}
	}
	return false
}
