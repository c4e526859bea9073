// internal/model/campaign.go
package model

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelIVR      Channel = "ivr"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelIVR:
		return true
	}
	return false
}

type CampaignStatus string

const (
	StatusDraft      CampaignStatus = "draft"
	StatusScheduled  CampaignStatus = "scheduled"
	StatusInProgress CampaignStatus = "in-progress"
	StatusCompleted  CampaignStatus = "completed"
	StatusCancelled  CampaignStatus = "cancelled"
)

// Terminal statuses accept no further transitions.
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a campaign in status s may move to next.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	switch next {
	case StatusScheduled:
		return s == StatusDraft || s == StatusScheduled
	case StatusInProgress:
		return s == StatusDraft || s == StatusScheduled || s == StatusInProgress
	case StatusCompleted:
		return s == StatusInProgress
	case StatusCancelled:
		return !s.Terminal() || s == StatusCancelled
	}
	return false
}

// DefaultContent is used when a campaign carries neither a message nor a script.
const DefaultContent = "Campaign message"

// Progress counts delivery outcomes. Sent is cumulative: every processed
// contact is counted in Sent and in exactly one of Delivered or Failed.
type Progress struct {
	Pending   int `db:"pending" json:"pending" bson:"pending"`
	Sent      int `db:"sent" json:"sent" bson:"sent"`
	Delivered int `db:"delivered" json:"delivered" bson:"delivered"`
	Failed    int `db:"failed" json:"failed" bson:"failed"`
}

// NewProgress returns the progress of a campaign that has not processed anyone yet.
func NewProgress(contactsCount int) Progress {
	return Progress{Pending: contactsCount}
}

// Check verifies the accounting invariants against the campaign's contact count.
func (p Progress) Check(contactsCount int) error {
	if p.Pending < 0 || p.Sent < 0 || p.Delivered < 0 || p.Failed < 0 {
		return fmt.Errorf("%w: negative counter in %+v", appErrors.ErrInvariantViolated, p)
	}
	if p.Pending+p.Sent != contactsCount {
		return fmt.Errorf("%w: pending %d + sent %d != contacts %d",
			appErrors.ErrInvariantViolated, p.Pending, p.Sent, contactsCount)
	}
	if p.Delivered+p.Failed != p.Sent {
		return fmt.Errorf("%w: delivered %d + failed %d != sent %d",
			appErrors.ErrInvariantViolated, p.Delivered, p.Failed, p.Sent)
	}
	return nil
}

// Apply returns the progress after a batch of delivered+failed contacts was processed.
func (p Progress) Apply(delivered, failed int) Progress {
	size := delivered + failed
	return Progress{
		Pending:   p.Pending - size,
		Sent:      p.Sent + size,
		Delivered: p.Delivered + delivered,
		Failed:    p.Failed + failed,
	}
}

type Campaign struct {
	ID                string         `db:"id" json:"id" bson:"id"`
	Name              string         `db:"name" json:"name" bson:"name"`
	Channel           Channel        `db:"channel" json:"channel" bson:"channel"`
	Message           string         `db:"message" json:"message,omitempty" bson:"message,omitempty"`
	Script            string         `db:"script" json:"script,omitempty" bson:"script,omitempty"`
	VoiceRecordingRef string         `db:"voice_recording_ref" json:"voice_recording_ref,omitempty" bson:"voice_recording_ref,omitempty"`
	ContactIDs        []string       `db:"contact_ids" json:"contact_ids,omitempty" bson:"contact_ids"`
	ContactsCount     int            `db:"contacts_count" json:"contacts_count" bson:"contacts_count"`
	Status            CampaignStatus `db:"status" json:"status" bson:"status"`
	Progress          Progress       `json:"progress" bson:"progress"`
	ScheduledFor      *time.Time     `db:"scheduled_for" json:"scheduled_for,omitempty" bson:"scheduled_for,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

// NewCampaign builds a draft campaign from a submitted form.
func NewCampaign(id string, form CampaignForm, now time.Time) *Campaign {
	contacts := append([]string(nil), form.Contacts...)
	return &Campaign{
		ID:                id,
		Name:              form.Name,
		Channel:           form.Channel,
		Message:           form.Message,
		Script:            form.Script,
		VoiceRecordingRef: form.VoiceRecordingRef,
		ContactIDs:        contacts,
		ContactsCount:     len(contacts),
		Status:            StatusDraft,
		Progress:          NewProgress(len(contacts)),
		ScheduledFor:      form.ScheduledFor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Content is the text sent to each contact.
func (c *Campaign) Content() string {
	if c.Message != "" {
		return c.Message
	}
	if c.Script != "" {
		return c.Script
	}
	return DefaultContent
}

// ContactAt returns the contact targeted by the n-th processed message.
func (c *Campaign) ContactAt(n int) string {
	if n >= 0 && n < len(c.ContactIDs) {
		return c.ContactIDs[n]
	}
	return fmt.Sprintf("contact-%d", n+1)
}

// Apply merges the non-nil fields of patch into the campaign.
func (c *Campaign) Apply(patch CampaignPatch, now time.Time) {
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Message != nil {
		c.Message = *patch.Message
	}
	if patch.Script != nil {
		c.Script = *patch.Script
	}
	if patch.VoiceRecordingRef != nil {
		c.VoiceRecordingRef = *patch.VoiceRecordingRef
	}
	if patch.ScheduledFor != nil {
		t := *patch.ScheduledFor
		c.ScheduledFor = &t
	}
	c.UpdatedAt = now
}

// Clone returns a deep copy so stores never share slices with callers.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ContactIDs = append([]string(nil), c.ContactIDs...)
	if c.ScheduledFor != nil {
		t := *c.ScheduledFor
		cp.ScheduledFor = &t
	}
	return &cp
}

// CampaignForm is the payload used to create a campaign.
type CampaignForm struct {
	Name              string     `json:"name"`
	Channel           Channel    `json:"channel"`
	Message           string     `json:"message,omitempty"`
	Script            string     `json:"script,omitempty"`
	VoiceRecordingRef string     `json:"voice_recording_ref,omitempty"`
	Contacts          []string   `json:"contacts"`
	ScheduledFor      *time.Time `json:"scheduled_for,omitempty"`
}

// Validate checks the fields a campaign cannot be created without.
func (f CampaignForm) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", appErrors.ErrInvalidInput)
	}
	if !f.Channel.Valid() {
		return fmt.Errorf("%w: invalid channel %q (must be sms, whatsapp or ivr)", appErrors.ErrInvalidInput, f.Channel)
	}
	switch f.Channel {
	case ChannelIVR:
		if f.Script == "" && f.VoiceRecordingRef == "" {
			return fmt.Errorf("%w: ivr campaigns need a script or a voice recording", appErrors.ErrInvalidInput)
		}
	default:
		if f.Message == "" {
			return fmt.Errorf("%w: message is required", appErrors.ErrInvalidInput)
		}
	}
	return nil
}

// CampaignPatch carries the editable fields of a campaign; nil means unchanged.
type CampaignPatch struct {
	Name              *string    `json:"name,omitempty"`
	Message           *string    `json:"message,omitempty"`
	Script            *string    `json:"script,omitempty"`
	VoiceRecordingRef *string    `json:"voice_recording_ref,omitempty"`
	ScheduledFor      *time.Time `json:"scheduled_for,omitempty"`
}

type CampaignFilter struct {
	Status  CampaignStatus
	Channel Channel
	Search  string
}

// Match reports whether c passes the filter.
func (f CampaignFilter) Match(c *Campaign) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Channel != "" && c.Channel != f.Channel {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
