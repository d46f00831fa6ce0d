package database

import (
	"context"
	"time"

	"github.com/anicoll/petlibro-integration/internal/pkg/model"
	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
)

func (db *Database) Write(ctx context.Context, data []map[string]any) error {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, record := range data {
		if _, err := tx.Exec(ctx, `
			INSERT INTO Property (time_stamp, unit_of_measurement, value, identifier, slug)
			VALUES ($1, $2, $3, $4, $5)
		`, record["timestamp"], record["unit_of_measurement"], record["value"], record["identifier"], record["slug"]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (db *Database) RegisterDevice(device *model.Device) error {
	_, err := db.conn.Exec(context.Background(), `
		INSERT INTO Device (id, name, model, serial_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING;`, device.ID, device.Name, device.Model, device.SerialNumber)
	if err != nil {
		return err
	}

	return nil
}

// RecordFeeding stores one completed dispense for history queries.
func (db *Database) RecordFeeding(ctx context.Context, serialNumber string, fr petlibro.FeedingResult) error {
	_, err := db.conn.Exec(ctx, `
		INSERT INTO FeedingEvent (serial_number, actual_portions, expected_portions, exec_time, step, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, serialNumber, fr.Actual, fr.Expected, fr.ExecTime, fr.Step, time.Now())
	return err
}
