package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RfqStatus is the lifecycle state of an RFQ.
type RfqStatus string

const (
	RfqStatusDraft      RfqStatus = "draft"
	RfqStatusSent       RfqStatus = "sent"
	RfqStatusClosed     RfqStatus = "closed"
	RfqStatusAwarded    RfqStatus = "awarded"
	RfqStatusNotAwarded RfqStatus = "not_awarded"
)

var rfqTransitions = map[RfqStatus][]RfqStatus{
	RfqStatusDraft: {RfqStatusSent},
	RfqStatusSent:  {RfqStatusClosed, RfqStatusAwarded, RfqStatusNotAwarded},
}

// Valid reports whether s is a known status.
func (s RfqStatus) Valid() bool {
	switch s {
	case RfqStatusDraft, RfqStatusSent, RfqStatusClosed, RfqStatusAwarded, RfqStatusNotAwarded:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s RfqStatus) Terminal() bool {
	return s.Valid() && len(rfqTransitions[s]) == 0
}

// Transition checks the move from s to to.
func (s RfqStatus) Transition(to RfqStatus) error {
	for _, next := range rfqTransitions[s] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{From: s, To: to}
}

// TransitionError is returned for a disallowed status change.
type TransitionError struct {
	From RfqStatus
	To   RfqStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move RFQ from %s to %s", e.From, e.To)
}

// DateRange is an optional event window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether End is not before Start.
func (r DateRange) Valid() bool {
	return !r.End.Before(r.Start)
}

// Rfq is a request for quote owned by one agency.
type Rfq struct {
	ID               uuid.UUID  `json:"id"`
	AgencyID         uuid.UUID  `json:"agency_id"`
	CreatedByUserID  string     `json:"created_by_user_id"`
	Title            string     `json:"title"`
	ClientName       string     `json:"client_name"`
	EventDates       *DateRange `json:"event_dates,omitempty"`
	Venue            string     `json:"venue,omitempty"`
	Scope            string     `json:"scope"`
	Attachments      []string   `json:"attachments"`
	ResponseDeadline time.Time  `json:"response_deadline"`
	Status           RfqStatus  `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RfqUpdate is a partial update of an RFQ. Status, when set, goes through
// the state machine.
type RfqUpdate struct {
	Title            *string    `json:"title"`
	ClientName       *string    `json:"client_name"`
	EventDates       *DateRange `json:"event_dates"`
	Venue            *string    `json:"venue"`
	Scope            *string    `json:"scope"`
	ResponseDeadline *time.Time `json:"response_deadline"`
	Status           *RfqStatus `json:"status"`
}

// HasFields reports whether u changes anything besides status.
func (u RfqUpdate) HasFields() bool {
	return u.Title != nil || u.ClientName != nil || u.EventDates != nil ||
		u.Venue != nil || u.Scope != nil || u.ResponseDeadline != nil
}

// Apply copies the set fields of u onto r. Status is left to the caller.
func (u RfqUpdate) Apply(r *Rfq) {
	setString(&r.Title, u.Title)
	setString(&r.ClientName, u.ClientName)
	setString(&r.Venue, u.Venue)
	setString(&r.Scope, u.Scope)
	if u.EventDates != nil {
		d := *u.EventDates
		r.EventDates = &d
	}
	if u.ResponseDeadline != nil {
		r.ResponseDeadline = *u.ResponseDeadline
	}
}
