package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"sac-backend-go/internal/models"
)

// BusesFrom lists buses whose first stop is start and whose run has not
// finished at now, earliest departure first. Times are wall-clock HH:MM.
func BusesFrom(ctx context.Context, database *sqlx.DB, start string, now time.Time) ([]models.Bus, error) {
	items := []models.Bus{}
	err := database.SelectContext(ctx, &items, `
SELECT id, stops, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time
FROM bus
WHERE stops[1] = $1 AND end_time >= $2::time
ORDER BY start_time
`, start, now.Format("15:04:05"))
	return items, WrapError(err, "list buses")
}
