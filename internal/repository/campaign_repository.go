package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
	"github.com/unclebandit/campaign-service/internal/model"
)

// CampaignRepository is the Postgres implementation of CampaignRepositoryInterface.
type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, channel, message, script, voice_recording_ref, contact_ids, contacts_count,
    status, pending, sent, delivered, failed, scheduled_for, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c            model.Campaign
		scheduledFor sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Channel, &c.Message, &c.Script, &c.VoiceRecordingRef,
		pq.Array(&c.ContactIDs), &c.ContactsCount, &c.Status,
		&c.Progress.Pending, &c.Progress.Sent, &c.Progress.Delivered, &c.Progress.Failed,
		&scheduledFor, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scheduledFor.Valid {
		t := scheduledFor.Time
		c.ScheduledFor = &t
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) InsertOne(ctx context.Context, c *model.Campaign) error {
	query := `
        INSERT INTO campaigns (` + campaignColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `
	contactIDs := c.ContactIDs
	if contactIDs == nil {
		contactIDs = []string{}
	}
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.Name, c.Channel, c.Message, c.Script, c.VoiceRecordingRef,
		pq.Array(contactIDs), c.ContactsCount, c.Status,
		c.Progress.Pending, c.Progress.Sent, c.Progress.Delivered, c.Progress.Failed,
		c.ScheduledFor, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign %s: %w", c.ID, err)
	}
	return nil
}

func (r *CampaignRepository) FindOne(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("find campaign %s: %w", id, err)
	}
	return c, nil
}

func (r *CampaignRepository) Find(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	query, args := campaignFindQuery(filter)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches term literally anywhere in a LIKE ... ESCAPE '\' comparison
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func campaignFindQuery(filter model.CampaignFilter) (string, []interface{}) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Channel != "" {
		query += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, filter.Channel)
		argPos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(` AND name ILIKE $%d ESCAPE '\'`, argPos)
		args = append(args, containsPattern(filter.Search))
	}
	query += " ORDER BY created_at DESC, id DESC"
	return query, args
}

func (r *CampaignRepository) UpdateDetails(ctx context.Context, c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, message=$2, script=$3, voice_recording_ref=$4, scheduled_for=$5, updated_at=$6
        WHERE id=$7
    `
	res, err := r.DB.ExecContext(ctx, query,
		c.Name, c.Message, c.Script, c.VoiceRecordingRef, c.ScheduledFor, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign %s: %w", c.ID, err)
	}
	return expectRow(res, c.ID)
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus, updatedAt time.Time) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	res, err := r.DB.ExecContext(ctx, query, status, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update campaign %s status: %w", id, err)
	}
	return expectRow(res, id)
}

func (r *CampaignRepository) UpdateProgress(ctx context.Context, id string, p model.Progress, updatedAt time.Time) error {
	query := `
        UPDATE campaigns
        SET pending=$1, sent=$2, delivered=$3, failed=$4, updated_at=$5
        WHERE id=$6
    `
	res, err := r.DB.ExecContext(ctx, query, p.Pending, p.Sent, p.Delivered, p.Failed, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update campaign %s progress: %w", id, err)
	}
	return expectRow(res, id)
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id string, from, to model.CampaignStatus, updatedAt time.Time) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`
	res, err := r.DB.ExecContext(ctx, query, to, updatedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("transition campaign %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteOne relies on ON DELETE CASCADE for the campaign's messages.
func (r *CampaignRepository) DeleteOne(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete campaign %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
