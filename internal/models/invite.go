package models

import (
	"time"

	"github.com/google/uuid"
)

// OrgInvite is a pending grant of organization membership to an email.
// Only the SHA-256 hash of the token is stored.
type OrgInvite struct {
	ID              uuid.UUID  `json:"id"`
	OrgType         OrgType    `json:"org_type"`
	OrgID           uuid.UUID  `json:"org_id"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	TokenHash       string     `json:"-"`
	InvitedByUserID string     `json:"invited_by_user_id,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Expired reports whether the invite can no longer be redeemed at now.
func (i *OrgInvite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Membership returns the membership the invite grants.
func (i *OrgInvite) Membership() Membership {
	return Membership{OrgType: i.OrgType, OrgID: i.OrgID, Role: i.Role}
}

// InviteStatus is the status of a supplier's RFQ invite.
type InviteStatus string

const (
	InviteStatusInvited   InviteStatus = "invited"
	InviteStatusOpened    InviteStatus = "opened"
	InviteStatusSubmitted InviteStatus = "submitted"
	InviteStatusClosed    InviteStatus = "closed"
)

// Valid reports whether s is a known invite status.
func (s InviteStatus) Valid() bool {
	switch s {
	case InviteStatusInvited, InviteStatusOpened, InviteStatusSubmitted, InviteStatusClosed:
		return true
	}
	return false
}

// RfqInvite links one RFQ to one supplier.
type RfqInvite struct {
	ID             uuid.UUID    `json:"id"`
	RfqID          uuid.UUID    `json:"rfq_id"`
	SupplierID     uuid.UUID    `json:"supplier_id"`
	Status         InviteStatus `json:"status"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	CreatedAt      time.Time    `json:"created_at"`
}
