package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/campaign-service/internal/model"
)

// MessageRepository is the Postgres implementation of MessageRepositoryInterface.
type MessageRepository struct {
	DB *sql.DB
}

// InsertMany copies a batch of messages in one transaction
func (r *MessageRepository) InsertMany(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("messages",
		"id", "campaign_id", "contact_id", "content", "channel", "status",
		"sent_at", "delivered_at", "error_message", "voice_recording_ref", "duration",
		"created_at", "updated_at",
	))
	if err != nil {
		return fmt.Errorf("prepare message copy: %w", err)
	}

	for _, m := range msgs {
		_, err = stmt.ExecContext(ctx,
			m.ID, m.CampaignID, m.ContactID, m.Content, string(m.Channel), string(m.Status),
			m.SentAt, m.DeliveredAt, m.ErrorMessage, m.VoiceRecordingRef, m.Duration,
			m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("copy message %s: %w", m.ID, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush message copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// FindByCampaign returns the campaign's messages oldest first
func (r *MessageRepository) FindByCampaign(ctx context.Context, campaignID string) ([]*model.Message, error) {
	query := `
        SELECT id, campaign_id, contact_id, content, channel, status, sent_at, delivered_at,
               error_message, voice_recording_ref, duration, created_at, updated_at
        FROM messages
        WHERE campaign_id=$1
        ORDER BY created_at, id
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", campaignID, err)
	}
	defer rows.Close()

	msgs := []*model.Message{}
	for rows.Next() {
		var (
			m                   model.Message
			sentAt, deliveredAt sql.NullTime
			duration            sql.NullInt64
		)
		if err := rows.Scan(
			&m.ID, &m.CampaignID, &m.ContactID, &m.Content, &m.Channel, &m.Status,
			&sentAt, &deliveredAt, &m.ErrorMessage, &m.VoiceRecordingRef, &duration,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}
		if deliveredAt.Valid {
			t := deliveredAt.Time
			m.DeliveredAt = &t
		}
		if duration.Valid {
			d := int(duration.Int64)
			m.Duration = &d
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepository) DeleteMany(ctx context.Context, campaignID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM messages WHERE campaign_id=$1`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("delete messages for %s: %w", campaignID, err)
	}
	return res.RowsAffected()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
