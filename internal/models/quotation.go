package models

import (
	"time"

	"github.com/google/uuid"
)

// QuotationStatus marks whether a quotation is current or superseded.
type QuotationStatus string

const (
	QuotationStatusSubmitted QuotationStatus = "submitted"
	QuotationStatusReplaced  QuotationStatus = "replaced"
)

// Quotation is a supplier's PDF response to an RFQ invite.
type Quotation struct {
	ID          uuid.UUID       `json:"id"`
	RfqInviteID uuid.UUID       `json:"rfq_invite_id"`
	SupplierID  uuid.UUID       `json:"supplier_id"`
	PdfURL      string          `json:"pdf_url"`
	Notes       string          `json:"notes,omitempty"`
	Status      QuotationStatus `json:"status"`
	Version     int             `json:"version"`
	SubmittedAt time.Time       `json:"submitted_at"`
}
