package database

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
)

type Database struct {
	conn *pgx.Conn
	io.Closer
}

func NewDatabase(conn *pgx.Conn) *Database {
	return &Database{
		conn: conn,
	}
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close(context.Background())
}

// Unit is a pointer because text sensors store no unit of measurement.
type Property struct {
	Id         int64     `json:"id"`
	TimeStamp  time.Time `json:"timestamp"`
	Unit       *string   `json:"unit_of_measurement,omitempty"`
	Value      string    `json:"value"`
	Identifier string    `json:"identifier"`
	Slug       string    `json:"slug"`
}

type Properties []Property

// FeedingEvent is one recorded dispense, scheduled or manual.
type FeedingEvent struct {
	Id           int64     `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Actual       int       `json:"actual_portions"`
	Expected     int       `json:"expected_portions"`
	ExecTime     time.Time `json:"exec_time"`
	Step         string    `json:"step"`
	CreatedAt    time.Time `json:"created_at"`
}

type FeedingEvents []FeedingEvent
