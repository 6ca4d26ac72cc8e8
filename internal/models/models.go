package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID            int64          `db:"id"`
	Name          string         `db:"name"`
	Email         string         `db:"email"`
	Password      string         `db:"password"`
	Active        bool           `db:"active"`
	ContactNumber sql.NullString `db:"contact_number"`
}

type ClubApplication struct {
	ID         int64        `db:"id"`
	ClubID     int64        `db:"club_id"`
	UserID     int64        `db:"user_id"`
	Message    string       `db:"message"`
	CreatedAt  time.Time    `db:"created_at"`
	Accepted   bool         `db:"accepted"`
	AcceptedAt sql.NullTime `db:"accepted_at"`
}

type Club struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	Email          string         `db:"email"`
	Description    string         `db:"description"`
	CouncilID      int64          `db:"council_id"`
	ClubHeadEmails pq.StringArray `db:"club_head_emails"`
	Phones         pq.StringArray `db:"phones"`
}

// Upload is a content-addressed media object. Blob is nil when the bytes
// live in the external blob store.
type Upload struct {
	ID             int64  `db:"id"`
	FileType       string `db:"file_type"`
	Blob           []byte `db:"blob"`
	Storage        string `db:"storage"`
	OriginalHash   string `db:"original_hash"`
	CompressedHash string `db:"compressed_hash"`
}

type Bus struct {
	ID        int64          `db:"id"`
	Stops     pq.StringArray `db:"stops"`
	StartTime string         `db:"start_time"`
	EndTime   string         `db:"end_time"`
}
