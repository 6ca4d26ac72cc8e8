package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"sac-backend-go/internal/db"
)

type ThreadView struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Author    string    `db:"author" json:"author"`
	ClubID    int64     `db:"club_id" json:"club_id"`
	Likes     int       `db:"likes" json:"likes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CommentView struct {
	ID        int64     `db:"id" json:"id"`
	ThreadID  int64     `db:"thread_id" json:"thread_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Author    string    `db:"author" json:"author"`
	Content   string    `db:"content" json:"content"`
	Likes     int       `db:"likes" json:"likes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type NewThread struct {
	Title   string
	Content string
	ClubID  int64
}

// likeTarget names the counter table and the per-user like table for one
// likeable entity. Values are fixed here and never come from requests.
type likeTarget struct {
	table    string
	likes    string
	column   string
	noun     string
	notFound string
}

var (
	threadLikes  = likeTarget{table: "thread", likes: "thread_likes", column: "thread_id", noun: "thread", notFound: "Thread not found"}
	commentLikes = likeTarget{table: "comment", likes: "comment_likes", column: "comment_id", noun: "comment", notFound: "Comment not found"}
)

func ListThreads(ctx context.Context, database *sqlx.DB, clubID int64) ([]ThreadView, error) {
	items := []ThreadView{}
	err := database.SelectContext(ctx, &items, `
SELECT t.id, t.title, t.content, t.user_id, u.name AS author, t.club_id, t.likes, t.created_at
FROM thread t
JOIN user_profile u ON u.id = t.user_id
WHERE t.club_id = $1
ORDER BY t.created_at DESC, t.id DESC
`, clubID)
	return items, WrapError(err, "list threads")
}

func CreateThread(ctx context.Context, database *sqlx.DB, userID int64, in NewThread) (int64, error) {
	var id int64
	err := database.GetContext(ctx, &id, `
INSERT INTO thread (title, content, user_id, club_id)
VALUES ($1, $2, $3, $4)
RETURNING id
`, in.Title, in.Content, userID, in.ClubID)
	if db.IsForeignKeyViolation(err) {
		return 0, ErrNotFound("Club not found")
	}
	return id, WrapError(err, "insert thread")
}

func ListComments(ctx context.Context, database *sqlx.DB, threadID int64) ([]CommentView, error) {
	items := []CommentView{}
	err := database.SelectContext(ctx, &items, `
SELECT c.id, c.thread_id, c.user_id, u.name AS author, c.content, c.likes, c.created_at
FROM comment c
JOIN user_profile u ON u.id = c.user_id
WHERE c.thread_id = $1
ORDER BY c.created_at, c.id
`, threadID)
	return items, WrapError(err, "list comments")
}

func CreateComment(ctx context.Context, database *sqlx.DB, userID, threadID int64, content string) (int64, error) {
	var id int64
	err := database.GetContext(ctx, &id, `
INSERT INTO comment (thread_id, user_id, content)
VALUES ($1, $2, $3)
RETURNING id
`, threadID, userID, content)
	if db.IsForeignKeyViolation(err) {
		return 0, ErrNotFound("Thread not found")
	}
	return id, WrapError(err, "insert comment")
}

func LikeThread(ctx context.Context, database *sqlx.DB, userID, threadID int64) error {
	return like(ctx, database, threadLikes, userID, threadID)
}

func LikeComment(ctx context.Context, database *sqlx.DB, userID, commentID int64) error {
	return like(ctx, database, commentLikes, userID, commentID)
}

// like records one like per user and bumps the counter in the same
// transaction so the counter always equals the number of like rows.
func like(ctx context.Context, database *sqlx.DB, target likeTarget, userID, entityID int64) error {
	return db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		insert := fmt.Sprintf(`INSERT INTO %s (%s, user_id) VALUES ($1, $2)`, target.likes, target.column)
		_, err := tx.ExecContext(ctx, insert, entityID, userID)
		if db.IsUniqueViolation(err) {
			return ErrBadRequest(fmt.Sprintf("You already liked this %s", target.noun))
		}
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound(target.notFound)
		}
		if err != nil {
			return WrapError(err, "insert like")
		}
		bump := fmt.Sprintf(`UPDATE %s SET likes = likes + 1 WHERE id = $1`, target.table)
		_, err = tx.ExecContext(ctx, bump, entityID)
		return WrapError(err, "update likes")
	})
}
