package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"sac-backend-go/internal/db"
	"sac-backend-go/internal/models"
)

type ClubSummary struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Email       string `db:"email" json:"email"`
	Description string `db:"description" json:"description"`
	CouncilID   int64  `db:"council_id" json:"council_id"`
}

type ApplicationView struct {
	ID         int64      `db:"id" json:"id"`
	ClubID     int64      `db:"club_id" json:"club_id"`
	ClubName   string     `db:"club_name" json:"club_name"`
	Message    string     `db:"message" json:"message"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Accepted   bool       `db:"accepted" json:"accepted"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at"`
}

type PendingApplication struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type NewClub struct {
	Name        string
	Email       string
	Description string
	CouncilName string
	HeadEmails  []string
	Phones      []string
}

// ClubUpdate carries exactly one change.
type ClubUpdate struct {
	Heads       *[]string
	Description *string
	Phones      *[]string
	Email       *string
}

func (u ClubUpdate) count() int {
	n := 0
	if u.Heads != nil {
		n++
	}
	if u.Description != nil {
		n++
	}
	if u.Phones != nil {
		n++
	}
	if u.Email != nil {
		n++
	}
	return n
}

type HeadContact struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	ContactNumber string `json:"contact_number"`
}

type ClubFull struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Description string        `json:"description"`
	CouncilID   int64         `json:"council_id"`
	Phones      []string      `json:"phones"`
	Heads       []HeadContact `json:"heads"`
}

func ListClubs(ctx context.Context, database *sqlx.DB) ([]ClubSummary, error) {
	items := []ClubSummary{}
	err := database.SelectContext(ctx, &items, `
SELECT id, name, email, description, council_id
FROM club
ORDER BY name
`)
	return items, WrapError(err, "list clubs")
}

func ListMemberClubs(ctx context.Context, database *sqlx.DB, userID int64) ([]ClubSummary, error) {
	items := []ClubSummary{}
	err := database.SelectContext(ctx, &items, `
SELECT c.id, c.name, c.email, c.description, c.council_id
FROM club c
JOIN membership m ON m.club_id = c.id
WHERE m.user_id = $1
ORDER BY c.name
`, userID)
	return items, WrapError(err, "list member clubs")
}

func ListApplications(ctx context.Context, database *sqlx.DB, userID int64) ([]ApplicationView, error) {
	items := []ApplicationView{}
	err := database.SelectContext(ctx, &items, `
SELECT a.id, a.club_id, c.name AS club_name, a.message, a.created_at, a.accepted, a.accepted_at
FROM club_application a
JOIN club c ON c.id = a.club_id
WHERE a.user_id = $1
ORDER BY a.created_at DESC
`, userID)
	return items, WrapError(err, "list applications")
}

func ClubIDByName(ctx context.Context, database *sqlx.DB, name string) (int64, error) {
	var id int64
	err := database.GetContext(ctx, &id, `SELECT id FROM club WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound("Club not found")
	}
	return id, WrapError(err, "load club")
}

// CreateClub inserts the club and a head membership for every head email in
// one transaction.
func CreateClub(ctx context.Context, database *sqlx.DB, in NewClub) (int64, error) {
	heads := normalizeEmails(in.HeadEmails)
	if len(heads) == 0 {
		return 0, ErrBadRequest("A club needs at least one head")
	}
	var councilID int64
	err := database.GetContext(ctx, &councilID, `SELECT id FROM council WHERE name = $1`, in.CouncilName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound("Council not found")
	}
	if err != nil {
		return 0, WrapError(err, "load council")
	}
	ok, err := EmailsRegistered(ctx, database, heads)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrBadRequest("All club heads must be registered users")
	}

	var clubID int64
	err = db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &clubID, `
INSERT INTO club (name, email, description, council_id, club_head_emails, phones)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, in.Name, normalizeEmail(in.Email), in.Description, councilID, pq.Array(heads), pq.Array(in.Phones))
		if db.IsUniqueViolation(err) {
			return ErrConflict("Club already exists")
		}
		if err != nil {
			return WrapError(err, "insert club")
		}
		return promoteHeads(ctx, tx, clubID, heads)
	})
	return clubID, err
}

func promoteHeads(ctx context.Context, tx *sqlx.Tx, clubID int64, heads []string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO membership (user_id, club_id, role, privilege_level)
SELECT id, $1, 'head', $2 FROM user_profile WHERE email = ANY($3)
ON CONFLICT (user_id, club_id) DO UPDATE SET role = 'head', privilege_level = EXCLUDED.privilege_level
`, clubID, LevelHead, pq.Array(heads))
	return WrapError(err, "insert head memberships")
}

// UpdateClub applies one change. Replacing heads also moves head memberships
// so privilege follows the head list.
func UpdateClub(ctx context.Context, database *sqlx.DB, clubID int64, update ClubUpdate) error {
	if update.count() != 1 {
		return ErrBadRequest("Exactly one update is required")
	}
	switch {
	case update.Description != nil:
		return execClubUpdate(ctx, database, `UPDATE club SET description = $2 WHERE id = $1`, clubID, *update.Description)
	case update.Email != nil:
		return execClubUpdate(ctx, database, `UPDATE club SET email = $2 WHERE id = $1`, clubID, normalizeEmail(*update.Email))
	case update.Phones != nil:
		return execClubUpdate(ctx, database, `UPDATE club SET phones = $2 WHERE id = $1`, clubID, pq.Array(*update.Phones))
	}

	heads := normalizeEmails(*update.Heads)
	if len(heads) == 0 {
		return ErrBadRequest("A club needs at least one head")
	}
	ok, err := EmailsRegistered(ctx, database, heads)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBadRequest("All club heads must be registered users")
	}
	return db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE club SET club_head_emails = $2 WHERE id = $1`, clubID, pq.Array(heads)); err != nil {
			return WrapError(err, "update heads")
		}
		_, err := tx.ExecContext(ctx, `
UPDATE membership m SET role = 'member', privilege_level = $2
FROM user_profile u
WHERE u.id = m.user_id AND m.club_id = $1 AND m.role = 'head' AND NOT (u.email = ANY($3))
`, clubID, LevelMember, pq.Array(heads))
		if err != nil {
			return WrapError(err, "demote heads")
		}
		return promoteHeads(ctx, tx, clubID, heads)
	})
}

func execClubUpdate(ctx context.Context, database *sqlx.DB, query string, clubID int64, value interface{}) error {
	_, err := database.ExecContext(ctx, query, clubID, value)
	return WrapError(err, "update club")
}

func JoinClub(ctx context.Context, database *sqlx.DB, userID, clubID int64, message string) error {
	state := struct {
		ClubExists bool `db:"club_exists"`
		Member     bool `db:"member"`
		Pending    bool `db:"pending"`
	}{}
	err := database.GetContext(ctx, &state, `
SELECT
  EXISTS(SELECT 1 FROM club WHERE id = $2) AS club_exists,
  EXISTS(SELECT 1 FROM membership WHERE user_id = $1 AND club_id = $2) AS member,
  EXISTS(SELECT 1 FROM club_application WHERE user_id = $1 AND club_id = $2 AND accepted = FALSE) AS pending
`, userID, clubID)
	if err != nil {
		return WrapError(err, "load join state")
	}
	switch {
	case !state.ClubExists:
		return ErrNotFound("Club not found")
	case state.Member:
		return ErrBadRequest("You are already a member of this club")
	case state.Pending:
		return ErrBadRequest("You have already applied to this club")
	}
	_, err = database.ExecContext(ctx, `
INSERT INTO club_application (club_id, user_id, message)
VALUES ($1, $2, $3)
`, clubID, userID, message)
	return WrapError(err, "insert application")
}

func PendingApplications(ctx context.Context, database *sqlx.DB, clubID int64) ([]PendingApplication, error) {
	items := []PendingApplication{}
	err := database.SelectContext(ctx, &items, `
SELECT a.id, a.user_id, u.name, u.email, a.message, a.created_at
FROM club_application a
JOIN user_profile u ON u.id = a.user_id
WHERE a.club_id = $1 AND a.accepted = FALSE
ORDER BY a.created_at
`, clubID)
	return items, WrapError(err, "list pending applications")
}

func ApplicationClubID(ctx context.Context, database *sqlx.DB, applicationID int64) (int64, error) {
	var clubID int64
	err := database.GetContext(ctx, &clubID, `SELECT club_id FROM club_application WHERE id = $1`, applicationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound("Application not found")
	}
	return clubID, WrapError(err, "load application")
}

// AcceptApplication marks the application accepted and creates the member
// row atomically. Either both writes land or neither does.
func AcceptApplication(ctx context.Context, database *sqlx.DB, applicationID int64) error {
	return db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		app := models.ClubApplication{}
		err := tx.GetContext(ctx, &app, `
UPDATE club_application SET accepted = TRUE, accepted_at = now()
WHERE id = $1 AND accepted = FALSE
RETURNING id, club_id, user_id, message, created_at, accepted, accepted_at
`, applicationID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBadRequest("Application is missing or already accepted")
		}
		if err != nil {
			return WrapError(err, "accept application")
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO membership (user_id, club_id, role, privilege_level)
VALUES ($1, $2, 'member', $3)
`, app.UserID, app.ClubID, LevelMember)
		if db.IsUniqueViolation(err) {
			return ErrBadRequest("User is already a member of this club")
		}
		return WrapError(err, "insert membership")
	})
}

// ClubFullView loads a club with its heads' contact details.
func ClubFullView(ctx context.Context, database *sqlx.DB, name string) (ClubFull, error) {
	club := models.Club{}
	err := database.GetContext(ctx, &club, `
SELECT id, name, email, description, council_id, club_head_emails, phones
FROM club
WHERE name = $1
`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return ClubFull{}, ErrNotFound("Club not found")
	}
	if err != nil {
		return ClubFull{}, WrapError(err, "load club")
	}

	heads := make([]HeadContact, len(club.ClubHeadEmails))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, email := range club.ClubHeadEmails {
		group.Go(func() error {
			contact, err := ContactByEmail(gctx, database, email)
			if err != nil {
				return err
			}
			heads[i] = HeadContact{Name: contact.Name, Email: contact.Email, ContactNumber: contact.Phone()}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return ClubFull{}, err
	}
	phones := []string(club.Phones)
	if phones == nil {
		phones = []string{}
	}
	return ClubFull{
		ID:          club.ID,
		Name:        club.Name,
		Email:       club.Email,
		Description: club.Description,
		CouncilID:   club.CouncilID,
		Phones:      phones,
		Heads:       heads,
	}, nil
}
