package services

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sac-backend-go/internal/db"
)

type NewCouncil struct {
	Name              string
	SecretaryEmail    string
	DeputySecretaries []string
}

// CouncilUpdate carries exactly one change.
type CouncilUpdate struct {
	Secretary *string
	Deputies  *[]string
}

func ListCouncilNames(ctx context.Context, database *sqlx.DB) ([]string, error) {
	names := []string{}
	err := database.SelectContext(ctx, &names, `SELECT name FROM council ORDER BY name`)
	return names, WrapError(err, "list councils")
}

func CreateCouncil(ctx context.Context, database *sqlx.DB, in NewCouncil) (int64, error) {
	deputies := normalizeEmails(in.DeputySecretaries)
	ok, err := EmailsRegistered(ctx, database, deputies)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrBadRequest("All deputy secretaries must be registered users")
	}
	var id int64
	err = database.GetContext(ctx, &id, `
INSERT INTO council (name, secretary_email, deputy_secretaries_email)
VALUES ($1, $2, $3)
RETURNING id
`, in.Name, normalizeEmail(in.SecretaryEmail), pq.Array(deputies))
	if db.IsUniqueViolation(err) {
		return 0, ErrConflict("Council already exists")
	}
	return id, WrapError(err, "insert council")
}

func UpdateCouncil(ctx context.Context, database *sqlx.DB, name string, update CouncilUpdate) error {
	var (
		query string
		value interface{}
	)
	switch {
	case update.Secretary != nil && update.Deputies != nil, update.Secretary == nil && update.Deputies == nil:
		return ErrBadRequest("Exactly one update is required")
	case update.Secretary != nil:
		query = `UPDATE council SET secretary_email = $2 WHERE name = $1`
		value = normalizeEmail(*update.Secretary)
	default:
		deputies := normalizeEmails(*update.Deputies)
		ok, err := EmailsRegistered(ctx, database, deputies)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBadRequest("All deputy secretaries must be registered users")
		}
		query = `UPDATE council SET deputy_secretaries_email = $2 WHERE name = $1`
		value = pq.Array(deputies)
	}
	res, err := database.ExecContext(ctx, query, name, value)
	if err != nil {
		return WrapError(err, "update council")
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound("Council not found")
	}
	return nil
}
