package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

func (db *Database) GetProperties(ctx context.Context, identifier, slug string, from, to *time.Time) (Properties, error) {
	if from == nil || to == nil {
		from = func() *time.Time {
			t := time.Now().AddDate(0, 0, -2)
			return &t
		}()
		to = func() *time.Time {
			t := time.Now()
			return &t
		}()
	}
	const query = `
	SELECT id, time_stamp, unit_of_measurement, value, identifier, slug
	FROM Property
	WHERE identifier = $1 AND slug = $2 AND time_stamp BETWEEN $3 AND $4
	ORDER BY time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query, identifier, slug, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProperties(rows)
}

func scanProperties(rows pgx.Rows) (Properties, error) {
	var properties Properties
	for rows.Next() {
		var property Property
		if err := rows.Scan(&property.Id, &property.TimeStamp, &property.Unit, &property.Value, &property.Identifier, &property.Slug); err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return properties, nil
		}
		return nil, err
	}

	return properties, nil
}

func (db *Database) GetLatestProperties(ctx context.Context) (Properties, error) {
	const query = `
	SELECT DISTINCT ON (slug) id, time_stamp, unit_of_measurement, value, identifier, slug
	FROM Property
	ORDER BY slug, time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProperties(rows)
}

func (db *Database) GetFeedings(ctx context.Context, serialNumber string, from, to time.Time) (FeedingEvents, error) {
	const query = `
	SELECT id, serial_number, actual_portions, expected_portions, exec_time, step, created_at
	FROM FeedingEvent
	WHERE serial_number = $1 AND exec_time BETWEEN $2 AND $3
	ORDER BY exec_time DESC;
	`

	rows, err := db.conn.Query(ctx, query, serialNumber, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events FeedingEvents
	for rows.Next() {
		var ev FeedingEvent
		if err := rows.Scan(&ev.Id, &ev.SerialNumber, &ev.Actual, &ev.Expected, &ev.ExecTime, &ev.Step, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return events, nil
		}
		return nil, err
	}

	return events, nil
}
