package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a profile's platform role.
type Role string

const (
	RoleUser           Role = "user"
	RoleAdmin          Role = "admin"
	RoleAgencyAdmin    Role = "agency_admin"
	RoleAgencyMember   Role = "agency_member"
	RoleSupplierAdmin  Role = "supplier_admin"
	RoleSupplierMember Role = "supplier_member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleAgencyAdmin, RoleAgencyMember, RoleSupplierAdmin, RoleSupplierMember:
		return true
	}
	return false
}

// OrgType returns the organization type a membership role belongs to, or ""
// for platform-level roles.
func (r Role) OrgType() OrgType {
	switch r {
	case RoleAgencyAdmin, RoleAgencyMember:
		return OrgTypeAgency
	case RoleSupplierAdmin, RoleSupplierMember:
		return OrgTypeSupplier
	}
	return ""
}

// AdminRole returns the admin role for an organization type.
func AdminRole(t OrgType) Role {
	if t == OrgTypeSupplier {
		return RoleSupplierAdmin
	}
	return RoleAgencyAdmin
}

// Profile is the platform record for an authenticated user. At most one of
// AgencyID and SupplierID is set.
type Profile struct {
	UserID     string     `json:"user_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	AgencyID   *uuid.UUID `json:"agency_id,omitempty"`
	SupplierID *uuid.UUID `json:"supplier_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// OrgID returns the profile's organization id for t, or nil.
func (p *Profile) OrgID(t OrgType) *uuid.UUID {
	switch t {
	case OrgTypeAgency:
		return p.AgencyID
	case OrgTypeSupplier:
		return p.SupplierID
	}
	return nil
}

// HasOrganization reports whether the profile belongs to any organization.
func (p *Profile) HasOrganization() bool {
	return p.AgencyID != nil || p.SupplierID != nil
}

// DisplayName returns "First Last", falling back to the email.
func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	}
	return p.Email
}

// Membership is the organization a profile is being attached to.
type Membership struct {
	OrgType OrgType
	OrgID   uuid.UUID
	Role    Role
}

// Apply sets the profile's organization fields from m, clearing the other type.
func (m Membership) Apply(p *Profile) {
	id := m.OrgID
	p.Role = m.Role
	p.AgencyID, p.SupplierID = nil, nil
	if m.OrgType == OrgTypeSupplier {
		p.SupplierID = &id
	} else {
		p.AgencyID = &id
	}
}
