// internal/model/contact.go
package model

import (
	"slices"
	"strings"
	"time"
)

type ContactStatus string

const (
	ContactActive   ContactStatus = "active"
	ContactInactive ContactStatus = "inactive"
	ContactPending  ContactStatus = "pending"
)

type Contact struct {
	ID        string        `db:"id" json:"id" bson:"id" yaml:"id"`
	Name      string        `db:"name" json:"name" bson:"name" yaml:"name"`
	Phone     string        `db:"phone" json:"phone" bson:"phone" yaml:"phone"`
	Email     string        `db:"email" json:"email,omitempty" bson:"email,omitempty" yaml:"email,omitempty"`
	Status    ContactStatus `db:"status" json:"status" bson:"status" yaml:"status"`
	Tags      []string      `db:"tags" json:"tags,omitempty" bson:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at" bson:"created_at" yaml:"created_at"`
}

// Placeholders returns the template values for this contact.
func (c *Contact) Placeholders() map[string]string {
	return map[string]string{
		"name":  c.Name,
		"phone": c.Phone,
		"email": c.Email,
	}
}

type ContactFilter struct {
	Search string
	Status ContactStatus
	Tag    string
}

// Match applies the dashboard search: name and email case-insensitively, phone verbatim.
func (f ContactFilter) Match(c *Contact) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Tag != "" && !slices.Contains(c.Tags, f.Tag) {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(c.Name), term) ||
		strings.Contains(c.Phone, f.Search) ||
		(c.Email != "" && strings.Contains(strings.ToLower(c.Email), term))
}
