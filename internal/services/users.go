package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Contact is the public view of a user shown on club pages.
type Contact struct {
	Name          string         `db:"name" json:"name"`
	Email         string         `db:"email" json:"email"`
	ContactNumber sql.NullString `db:"contact_number" json:"-"`
}

// Phone is the contact number or "" when none is on file.
func (c Contact) Phone() string {
	if c.ContactNumber.Valid {
		return c.ContactNumber.String
	}
	return ""
}

func normalizeEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		value := normalizeEmail(email)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}

// EmailsRegistered reports whether every email belongs to a user.
func EmailsRegistered(ctx context.Context, q sqlx.QueryerContext, emails []string) (bool, error) {
	emails = normalizeEmails(emails)
	if len(emails) == 0 {
		return true, nil
	}
	var count int
	err := sqlx.GetContext(ctx, q, &count, `SELECT COUNT(*) FROM user_profile WHERE email = ANY($1)`, pq.Array(emails))
	if err != nil {
		return false, WrapError(err, "count users")
	}
	return count == len(emails), nil
}

func ContactByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (Contact, error) {
	contact := Contact{}
	err := sqlx.GetContext(ctx, q, &contact, `SELECT name, email, contact_number FROM user_profile WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound("User not found")
	}
	if err != nil {
		return Contact{}, WrapError(err, "load contact")
	}
	return contact, nil
}
