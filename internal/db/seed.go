package db

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/campaign-service/internal/model"
)

type contactFixture struct {
	Contacts []*model.Contact `yaml:"contacts"`
}

// LoadContacts decodes a YAML contact fixture. Contacts without a status are
// active and contacts without a creation time are stamped with now.
func LoadContacts(r io.Reader, now time.Time) ([]*model.Contact, error) {
	var fx contactFixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}

	seen := make(map[string]bool, len(fx.Contacts))
	for i, c := range fx.Contacts {
		if c.ID == "" || c.Phone == "" {
			return nil, fmt.Errorf("contact %d: id and phone are required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("contact %d: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		if c.Status == "" {
			c.Status = model.ContactActive
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}
	return fx.Contacts, nil
}

// LoadContactsFile opens path and decodes it with LoadContacts.
func LoadContactsFile(path string, now time.Time) ([]*model.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()
	return LoadContacts(f, now)
}
