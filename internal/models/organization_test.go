package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseOrgType(t *testing.T) {
	for in, want := range map[string]OrgType{
		"agency": OrgTypeAgency, "agencies": OrgTypeAgency,
		"supplier": OrgTypeSupplier, "suppliers": OrgTypeSupplier,
	} {
		got, ok := ParseOrgType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseOrgType("venue")
	assert.False(t, ok)
}

func TestApplyUpdate(t *testing.T) {
	o := Organization{Type: OrgTypeSupplier, Name: "Acme AV", About: "Lighting"}
	text := "Lighting and sound"
	cats := []string{"av", "staging"}
	ApplyUpdate(&o, SupplierUpdate{ServicesText: &text, ServiceCategories: &cats})

	assert.Equal(t, "Acme AV", o.Name)
	assert.Equal(t, "Lighting and sound", o.About)
	assert.Equal(t, []string{"av", "staging"}, o.Categories)

	email := "hello@acme.test"
	assert.Equal(t, &email, UpdatedEmail(AgencyUpdate{Email: &email}))
	assert.Nil(t, UpdatedEmail(SupplierUpdate{}))
}

func TestMembershipApply(t *testing.T) {
	old := uuid.New()
	p := Profile{Role: RoleUser, AgencyID: &old}
	id := uuid.New()
	Membership{OrgType: OrgTypeSupplier, OrgID: id, Role: RoleSupplierMember}.Apply(&p)

	assert.Nil(t, p.AgencyID)
	assert.Equal(t, &id, p.SupplierID)
	assert.Equal(t, RoleSupplierMember, p.Role)
	assert.Equal(t, OrgTypeSupplier, p.Role.OrgType())
	assert.Equal(t, OrgType(""), RoleAdmin.OrgType())
}

func TestDirectoryFilterMatches(t *testing.T) {
	o := &Organization{
		Name:        "Bright Lights AV",
		Location:    Location{City: "Toronto", Province: "Ontario", Country: "Canada"},
		Categories:  []string{"av"},
		About:       "Lighting rigs",
		IsPublished: true,
		Status:      OrgStatusActive,
	}
	assert.True(t, DirectoryFilter{PublishedOnly: true, Category: "av", Location: "toronto", Query: "LIGHT"}.Matches(o))
	assert.False(t, DirectoryFilter{Category: "AV"}.Matches(o), "categories match exactly")
	assert.False(t, DirectoryFilter{Location: "Ottawa"}.Matches(o))
	assert.False(t, DirectoryFilter{Query: "catering"}.Matches(o))

	o.Status = OrgStatusPending
	assert.False(t, DirectoryFilter{PublishedOnly: true}.Matches(o))
	assert.True(t, DirectoryFilter{}.Matches(o))
}
