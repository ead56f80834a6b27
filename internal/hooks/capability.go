package hooks

import "github.com/eReuse/DeviceWare/internal/models"

// Capability describes which derived fields an event kind supports.
// The table is fixed at startup; hooks consult it instead of inspecting
// schemas per write.
type Capability struct {
	ByUser         bool
	ByOrganization bool
	ToOrganization bool
}

var capabilities = map[models.EventKind]Capability{
	models.KindRegister:      {ByUser: true, ByOrganization: true},
	models.KindAllocate:      {ByUser: true, ByOrganization: true, ToOrganization: true},
	models.KindDeallocate:    {ByUser: true, ByOrganization: true},
	models.KindReceive:       {ByUser: true, ByOrganization: true},
	models.KindReserve:       {ByUser: true, ByOrganization: true},
	models.KindSell:          {ByUser: true, ByOrganization: true},
	models.KindTestHardDrive: {ByUser: true, ByOrganization: true},
	models.KindEraseBasic:    {ByUser: true, ByOrganization: true},
	models.KindEraseSectors:  {ByUser: true, ByOrganization: true},
}

// CapabilityOf returns the capability descriptor of an event kind
func CapabilityOf(kind models.EventKind) Capability {
	return capabilities[kind]
}

// StampPrincipal materializes the acting user and their organization on
// the event. The organization is copied, not referenced: later changes
// to the user's profile must not alter historical events.
func StampPrincipal(event *models.Event, acting *models.Account) {
	if acting == nil {
		return
	}
	capability := CapabilityOf(event.Kind)
	if capability.ByUser {
		id := acting.ID
		event.ByUserID = &id
	}
	if capability.ByOrganization && acting.Organization != "" {
		event.ByOrganization = acting.Organization
	}
}
