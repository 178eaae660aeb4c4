package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrgType distinguishes agencies from suppliers.
type OrgType string

const (
	OrgTypeAgency   OrgType = "agency"
	OrgTypeSupplier OrgType = "supplier"
)

// Valid reports whether t is agency or supplier.
func (t OrgType) Valid() bool {
	return t == OrgTypeAgency || t == OrgTypeSupplier
}

// ParseOrgType accepts the singular or plural form used in URLs.
func ParseOrgType(s string) (OrgType, bool) {
	switch s {
	case "agency", "agencies":
		return OrgTypeAgency, true
	case "supplier", "suppliers":
		return OrgTypeSupplier, true
	}
	return "", false
}

// OrgStatus is the lifecycle status of an organization.
type OrgStatus string

const (
	OrgStatusActive   OrgStatus = "active"
	OrgStatusInactive OrgStatus = "inactive"
	OrgStatusPending  OrgStatus = "pending"
)

// Location is an organization's city/province/country.
type Location struct {
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
}

// Organization is an agency or a supplier. Categories holds interest
// categories for agencies and service categories for suppliers; About holds
// the agency description or the supplier services text.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Type        OrgType   `json:"type"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Location    Location  `json:"location"`
	Categories  []string  `json:"categories"`
	About       string    `json:"about,omitempty"`
	IsPublished bool      `json:"is_published"`
	Status      OrgStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrganizationUpdate is a partial update for one organization type.
// Implemented by AgencyUpdate and SupplierUpdate only.
type OrganizationUpdate interface {
	OrgType() OrgType
	apply(o *Organization)
}

// AgencyUpdate lists the mutable fields of an agency.
type AgencyUpdate struct {
	Name               *string   `json:"name"`
	ContactName        *string   `json:"contact_name"`
	Email              *string   `json:"email"`
	Phone              *string   `json:"phone"`
	Website            *string   `json:"website"`
	LogoURL            *string   `json:"logo_url"`
	Location           *Location `json:"location"`
	InterestCategories *[]string `json:"interest_categories"`
	About              *string   `json:"about"`
}

func (AgencyUpdate) OrgType() OrgType { return OrgTypeAgency }

func (u AgencyUpdate) apply(o *Organization) {
	setString(&o.Name, u.Name)
	setString(&o.ContactName, u.ContactName)
	setString(&o.Email, u.Email)
	setString(&o.Phone, u.Phone)
	setString(&o.Website, u.Website)
	setString(&o.LogoURL, u.LogoURL)
	setString(&o.About, u.About)
	if u.Location != nil {
		o.Location = *u.Location
	}
	if u.InterestCategories != nil {
		o.Categories = append([]string(nil), (*u.InterestCategories)...)
	}
}

// SupplierUpdate lists the mutable fields of a supplier.
type SupplierUpdate struct {
	Name              *string   `json:"name"`
	ContactName       *string   `json:"contact_name"`
	Email             *string   `json:"email"`
	Phone             *string   `json:"phone"`
	LogoURL           *string   `json:"logo_url"`
	Location          *Location `json:"location"`
	ServiceCategories *[]string `json:"service_categories"`
	ServicesText      *string   `json:"services_text"`
}

func (SupplierUpdate) OrgType() OrgType { return OrgTypeSupplier }

func (u SupplierUpdate) apply(o *Organization) {
	setString(&o.Name, u.Name)
	setString(&o.ContactName, u.ContactName)
	setString(&o.Email, u.Email)
	setString(&o.Phone, u.Phone)
	setString(&o.LogoURL, u.LogoURL)
	setString(&o.About, u.ServicesText)
	if u.Location != nil {
		o.Location = *u.Location
	}
	if u.ServiceCategories != nil {
		o.Categories = append([]string(nil), (*u.ServiceCategories)...)
	}
}

// ApplyUpdate applies u to o in place. The caller checks that the types match.
func ApplyUpdate(o *Organization, u OrganizationUpdate) {
	u.apply(o)
}

// UpdatedEmail returns the new email carried by u, if any.
func UpdatedEmail(u OrganizationUpdate) *string {
	switch v := u.(type) {
	case AgencyUpdate:
		return v.Email
	case SupplierUpdate:
		return v.Email
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// DirectoryFilter narrows an organization listing. Empty fields match
// everything; text matches are case-insensitive substrings.
type DirectoryFilter struct {
	PublishedOnly bool
	Category      string
	Location      string
	Query         string
}

// Matches reports whether o passes f.
func (f DirectoryFilter) Matches(o *Organization) bool {
	if f.PublishedOnly && (!o.IsPublished || o.Status != OrgStatusActive) {
		return false
	}
	if f.Category != "" && !slices.Contains(o.Categories, f.Category) {
		return false
	}
	if f.Location != "" && !containsFold(f.Location, o.Location.City, o.Location.Province, o.Location.Country) {
		return false
	}
	if f.Query != "" && !containsFold(f.Query, o.Name, o.About) {
		return false
	}
	return true
}

func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
