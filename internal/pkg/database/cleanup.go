package database

import (
	"context"
	"time"
)

// Cleanup removes history older than eight days from the property and
// feeding event tables.
func (db *Database) Cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -8)
	if _, err := db.conn.Exec(ctx, "DELETE FROM Property WHERE time_stamp < $1", cutoff); err != nil {
		return err
	}
	if _, err := db.conn.Exec(ctx, "DELETE FROM FeedingEvent WHERE exec_time < $1", cutoff); err != nil {
		return err
	}
	return nil
}
