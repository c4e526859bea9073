// internal/model/message.go
package model

import "time"

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryErrorMessage is recorded on every simulated failed delivery.
const DeliveryErrorMessage = "Network error or invalid number"

type Message struct {
	ID                string         `db:"id" json:"id" bson:"id"`
	CampaignID        string         `db:"campaign_id" json:"campaign_id" bson:"campaign_id"`
	ContactID         string         `db:"contact_id" json:"contact_id" bson:"contact_id"`
	Content           string         `db:"content" json:"content" bson:"content"`
	Channel           Channel        `db:"channel" json:"channel" bson:"channel"`
	Status            DeliveryStatus `db:"status" json:"status" bson:"status"` // pending, sent, delivered, failed
	SentAt            *time.Time     `db:"sent_at" json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	DeliveredAt       *time.Time     `db:"delivered_at" json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	ErrorMessage      string         `db:"error_message" json:"error_message,omitempty" bson:"error_message,omitempty"`
	VoiceRecordingRef string         `db:"voice_recording_ref" json:"voice_recording_ref,omitempty" bson:"voice_recording_ref,omitempty"`
	Duration          *int           `db:"duration" json:"duration,omitempty" bson:"duration,omitempty"` // seconds, ivr only
	CreatedAt         time.Time      `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at" bson:"updated_at"`
}
