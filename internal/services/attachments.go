package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// AttachmentKind is the closed set of entities media can be bound to.
type AttachmentKind int

const (
	AttachAnnouncement AttachmentKind = iota + 1
	AttachThread
	AttachEvent
)

var attachmentTables = map[AttachmentKind]string{
	AttachAnnouncement: "announcement_media",
	AttachThread:       "thread_media",
	AttachEvent:        "event_media",
}

func (k AttachmentKind) String() string {
	switch k {
	case AttachAnnouncement:
		return "Announcement"
	case AttachThread:
		return "Thread"
	case AttachEvent:
		return "Event"
	default:
		return fmt.Sprintf("AttachmentKind(%d)", int(k))
	}
}

// FormField is the multipart field that selects this kind on upload.
func (k AttachmentKind) FormField() string {
	switch k {
	case AttachAnnouncement:
		return "announcement_id"
	case AttachThread:
		return "thread_id"
	case AttachEvent:
		return "event_id"
	default:
		return ""
	}
}

func (k AttachmentKind) table() (string, error) {
	table, ok := attachmentTables[k]
	if !ok {
		return "", fmt.Errorf("unknown attachment kind %d", int(k))
	}
	return table, nil
}

func ParseAttachmentKind(raw string) (AttachmentKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "announcement":
		return AttachAnnouncement, nil
	case "thread":
		return AttachThread, nil
	case "event":
		return AttachEvent, nil
	default:
		return 0, ErrBadRequest("Unknown attachment type")
	}
}

// AttachmentKinds lists every kind in a stable order.
func AttachmentKinds() []AttachmentKind {
	return []AttachmentKind{AttachAnnouncement, AttachThread, AttachEvent}
}

type Target struct {
	Kind     AttachmentKind `json:"kind"`
	EntityID int64          `json:"entity_id"`
}

// Bind links mediaID to target inside tx. Re-binding the same pair is a no-op.
func Bind(ctx context.Context, tx *sqlx.Tx, mediaID int64, target Target) error {
	table, err := target.Kind.table()
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + table + ` (entity_id, media_id) VALUES ($1, $2) ON CONFLICT (entity_id, media_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, query, target.EntityID, mediaID); err != nil {
		return WrapError(err, "bind "+table)
	}
	return nil
}

// Resolve returns the compressed hash of the newest media bound to target.
func Resolve(ctx context.Context, db sqlx.QueryerContext, target Target) (string, error) {
	table, err := target.Kind.table()
	if err != nil {
		return "", err
	}
	query := `
SELECT u.compressed_hash
FROM ` + table + ` b
JOIN upload u ON u.id = b.media_id
WHERE b.entity_id = $1
ORDER BY b.id DESC
LIMIT 1`
	var hash string
	err = sqlx.GetContext(ctx, db, &hash, query, target.EntityID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMediaNotFound
	}
	if err != nil {
		return "", WrapError(err, "resolve "+table)
	}
	return hash, nil
}
