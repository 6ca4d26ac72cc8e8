package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type GrievanceView struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Grievance string    `db:"grievance" json:"grievance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func CreateGrievance(ctx context.Context, database *sqlx.DB, email, grievance string) error {
	_, err := database.ExecContext(ctx, `
INSERT INTO website_grievance (email, grievance)
VALUES ($1, $2)
`, normalizeEmail(email), grievance)
	return WrapError(err, "insert grievance")
}

func ListGrievances(ctx context.Context, database *sqlx.DB) ([]GrievanceView, error) {
	items := []GrievanceView{}
	err := database.SelectContext(ctx, &items, `
SELECT id, email, grievance, created_at
FROM website_grievance
ORDER BY created_at DESC, id DESC
`)
	return items, WrapError(err, "list grievances")
}
