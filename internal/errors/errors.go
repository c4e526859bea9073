// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request the caller has to fix.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvariantViolated is returned when progress counters stop adding up.
	ErrInvariantViolated = errors.New("progress invariant violated")

	// ErrAlreadyRunning is returned when a lifecycle loop already exists for a campaign.
	ErrAlreadyRunning = errors.New("campaign already running")

	// ErrLeaseHeld is returned when another process holds the campaign's run lease.
	ErrLeaseHeld = errors.New("campaign lease held by another process")
)

// ErrCampaignNotFound is returned by repositories for unknown campaign ids
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// IsNotFound reports whether err wraps an ErrCampaignNotFound.
func IsNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf)
}

// ErrInvalidTransition is returned when a lifecycle operation does not apply
// to the campaign's current status.
type ErrInvalidTransition struct {
	CampaignID string
	From       string
	To         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %s cannot move from %s to %s", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(id, from, to string) error {
	return &ErrInvalidTransition{CampaignID: id, From: from, To: to}
}

// IsInvalidTransition reports whether err wraps an ErrInvalidTransition.
func IsInvalidTransition(err error) bool {
	var it *ErrInvalidTransition
	return errors.As(err, &it)
}
