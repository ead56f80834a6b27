package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role represents the access level of an account
type Role string

const (
	RoleBasic     Role = "basic"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
	// RoleMachineSuperuser marks synthetic superuser accounts used by
	// other systems to talk to the API. They hold full access but never
	// appear in notification fan-outs.
	RoleMachineSuperuser Role = "machine-superuser"
)

// Roles lists every role the API accepts
var Roles = []Role{RoleBasic, RoleAdmin, RoleSuperuser, RoleMachineSuperuser}

// ElevatedRoles are the roles with full access to a tenant's database
var ElevatedRoles = []Role{RoleAdmin, RoleSuperuser, RoleMachineSuperuser}

// MachineRoles are roles representing non-human accounts
var MachineRoles = []Role{RoleMachineSuperuser}

// Valid reports whether the role is one the API accepts
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsMachine reports whether the role belongs to a non-human account
func (r Role) IsMachine() bool {
	for _, m := range MachineRoles {
		if r == m {
			return true
		}
	}
	return false
}

// Elevated reports whether the role grants full access to its databases
func (r Role) Elevated() bool {
	for _, e := range ElevatedRoles {
		if r == e {
			return true
		}
	}
	return false
}

type Account struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"_id"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`
	// Password holds the bcrypt hash. Inactive placeholder accounts
	// carry no password and cannot log in.
	Password        string         `json:"-"`
	Name            string         `json:"name,omitempty"`
	Token           string         `gorm:"uniqueIndex" json:"-"`
	Role            Role           `gorm:"not null;default:'basic'" json:"role"`
	Organization    string         `json:"organization,omitempty"`
	Active          bool           `gorm:"not null;default:true" json:"active"`
	DefaultDatabase string         `json:"defaultDatabase,omitempty"`
	Databases       StringList     `gorm:"type:jsonb;not null" json:"databases"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"_created"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"_updated"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

// HasDatabase reports whether the account belongs to the given tenant
func (a *Account) HasDatabase(db string) bool {
	if a.Role == RoleSuperuser || a.Role == RoleMachineSuperuser {
		return true
	}
	for _, d := range a.Databases {
		if d == db {
			return true
		}
	}
	return false
}
