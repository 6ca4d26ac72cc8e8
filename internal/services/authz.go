package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Privilege levels stored on membership rows.
const (
	LevelMember  = 0
	LevelPending = 1
	LevelHead    = 2
)

// Gate answers privilege questions. It never writes.
type Gate struct {
	DB *sqlx.DB
}

// PrivilegeLevel returns the caller's level in a club. No membership row
// means LevelMember, which no gated write accepts.
func (g Gate) PrivilegeLevel(ctx context.Context, userID, clubID int64) (int, error) {
	var level int
	err := g.DB.GetContext(ctx, &level, `
SELECT privilege_level FROM membership
WHERE user_id = $1 AND club_id = $2
`, userID, clubID)
	if errors.Is(err, sql.ErrNoRows) {
		return LevelMember, nil
	}
	if err != nil {
		return 0, WrapError(err, "load privilege")
	}
	return level, nil
}

// RequirePrivilege allows the action only when level > minLevel.
func (g Gate) RequirePrivilege(ctx context.Context, userID, clubID int64, minLevel int, action string) error {
	level, err := g.PrivilegeLevel(ctx, userID, clubID)
	if err != nil {
		return err
	}
	if level <= minLevel {
		return ErrForbidden("You are not allowed to " + action + " in this club")
	}
	return nil
}

// RequireWriter is the gate for club content: heads only.
func (g Gate) RequireWriter(ctx context.Context, userID, clubID int64, action string) error {
	return g.RequirePrivilege(ctx, userID, clubID, LevelPending, action)
}

func (g Gate) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := g.DB.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM admin WHERE id = $1)`, userID)
	if err != nil {
		return false, WrapError(err, "load admin flag")
	}
	return exists, nil
}

func (g Gate) RequireAdmin(ctx context.Context, userID int64) error {
	ok, err := g.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden("You are not an admin")
	}
	return nil
}

func (g Gate) IsClubHead(ctx context.Context, email string, clubID int64) (bool, error) {
	var exists bool
	err := g.DB.GetContext(ctx, &exists, `
SELECT EXISTS(SELECT 1 FROM club WHERE id = $1 AND $2 = ANY(club_head_emails))
`, clubID, email)
	if err != nil {
		return false, WrapError(err, "load club heads")
	}
	return exists, nil
}

func (g Gate) RequireClubHead(ctx context.Context, email string, clubID int64) error {
	ok, err := g.IsClubHead(ctx, email, clubID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden("You are not a club head")
	}
	return nil
}

// RequireClubHeadOrAdmin is used for club maintenance.
func (g Gate) RequireClubHeadOrAdmin(ctx context.Context, identity Identity, clubID int64) error {
	admin, err := g.IsAdmin(ctx, identity.ID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return g.RequireClubHead(ctx, identity.Email, clubID)
}
