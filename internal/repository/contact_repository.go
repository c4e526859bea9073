package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/campaign-service/internal/model"
)

// ContactRepository is the Postgres implementation of ContactRepositoryInterface.
type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, name, phone, email, status, tags, created_at`

func scanContact(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Status, pq.Array(&c.Tags), &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Find filters contacts the same way the dashboard search does
func (r *ContactRepository) Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error) {
	query, args := contactFindQuery(filter)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func contactFindQuery(filter model.ContactFilter) (string, []interface{}) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argPos)
		args = append(args, filter.Tag)
		argPos++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(
			` AND (name ILIKE $%[1]d ESCAPE '\' OR phone LIKE $%[1]d ESCAPE '\' OR email ILIKE $%[1]d ESCAPE '\')`,
			argPos)
		args = append(args, containsPattern(filter.Search))
	}
	query += " ORDER BY created_at, id"
	return query, args
}

func (r *ContactRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Contact, error) {
	out := make(map[string]*model.Contact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ANY($1)`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// InsertMany upserts contacts by id so the seeder can be re-run.
func (r *ContactRepository) InsertMany(ctx context.Context, contacts []*model.Contact) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO contacts (` + contactColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE
        SET name=EXCLUDED.name, phone=EXCLUDED.phone, email=EXCLUDED.email,
            status=EXCLUDED.status, tags=EXCLUDED.tags
    `
	for _, c := range contacts {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := tx.ExecContext(ctx, query, c.ID, c.Name, c.Phone, c.Email, c.Status, pq.Array(tags), c.CreatedAt); err != nil {
			return fmt.Errorf("upsert contact %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
