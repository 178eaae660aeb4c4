package models

import (
	"time"

	"github.com/google/uuid"
)

// Email kinds sent by the notification dispatcher.
const (
	EmailKindTeamInvite        = "team_invite"
	EmailKindRfqInvite         = "rfq_invite"
	EmailKindQuotationReceived = "quotation_received"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one delivery attempt of a notification email.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	Kind           string     `json:"kind"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
