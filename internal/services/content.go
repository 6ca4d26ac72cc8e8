package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"sac-backend-go/internal/db"
)

type AnnouncementView struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type EventView struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ClubID      int64     `db:"club_id" json:"club_id"`
	ClubName    string    `db:"club_name" json:"club_name"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	Venue       string    `db:"venue" json:"venue"`
}

type NewAnnouncement struct {
	Title   string
	Content string
	ClubID  int64
}

type NewEvent struct {
	Title       string
	Description string
	ClubID      int64
	StartsAt    time.Time
	Venue       string
}

func PublicAnnouncements(ctx context.Context, database *sqlx.DB) ([]AnnouncementView, error) {
	items := []AnnouncementView{}
	err := database.SelectContext(ctx, &items, `
SELECT id, title, content, created_at
FROM announcement
ORDER BY created_at DESC, id DESC
`)
	return items, WrapError(err, "list announcements")
}

func CreateAnnouncement(ctx context.Context, database *sqlx.DB, in NewAnnouncement) (int64, error) {
	var id int64
	err := database.GetContext(ctx, &id, `
INSERT INTO announcement (title, content, club_id)
VALUES ($1, $2, $3)
RETURNING id
`, in.Title, in.Content, in.ClubID)
	if db.IsForeignKeyViolation(err) {
		return 0, ErrNotFound("Club not found")
	}
	return id, WrapError(err, "insert announcement")
}

func ListEvents(ctx context.Context, database *sqlx.DB) ([]EventView, error) {
	items := []EventView{}
	err := database.SelectContext(ctx, &items, `
SELECT e.id, e.title, e.description, e.club_id, c.name AS club_name, e.starts_at, e.venue
FROM event e
JOIN club c ON c.id = e.club_id
ORDER BY e.id DESC
`)
	return items, WrapError(err, "list events")
}

func CreateEvent(ctx context.Context, database *sqlx.DB, userID int64, in NewEvent) (int64, error) {
	var id int64
	err := database.GetContext(ctx, &id, `
INSERT INTO event (title, description, user_id, club_id, starts_at, venue)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, in.Title, in.Description, userID, in.ClubID, in.StartsAt, in.Venue)
	if db.IsForeignKeyViolation(err) {
		return 0, ErrNotFound("Club not found")
	}
	return id, WrapError(err, "insert event")
}
