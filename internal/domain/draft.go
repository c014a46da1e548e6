package domain

import (
	"fmt"
	"time"
)

// Channel is the outbound delivery channel of a draft
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelLinkedIn Channel = "linkedin"
)

// DraftStatus represents the review status of a draft
type DraftStatus string

const (
	DraftStatusPending  DraftStatus = "pending"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusRejected DraftStatus = "rejected"
)

// Draft is an AI-generated outbound message awaiting a send decision.
// Drafts are created upstream; this service only touches the revision fields.
type Draft struct {
	ID                  string
	WorkspaceID         string
	LeadID              string
	Channel             Channel
	Content             string
	Status              DraftStatus
	Confidence          *float64
	RevisionAttemptedAt *time.Time
	RevisionApplied     bool
	RevisionConfidence  *float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ValidateDraft validates a Draft instance
func ValidateDraft(d *Draft) error {
	if d == nil {
		return fmt.Errorf("draft cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("draft ID is required")
	}

	if !IsValidChannel(d.Channel) {
		return fmt.Errorf("draft Channel is invalid: %s", d.Channel)
	}

	if !isValidDraftStatus(d.Status) {
		return fmt.Errorf("draft Status is invalid: %s", d.Status)
	}

	return nil
}

// IsValidChannel checks if a Channel is valid
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelLinkedIn:
		return true
	}
	return false
}

// isValidDraftStatus checks if a DraftStatus is valid
func isValidDraftStatus(s DraftStatus) bool {
	switch s {
	case DraftStatusPending, DraftStatusApproved, DraftStatusRejected:
		return true
	}
	return false
}
