package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/smartcharge/core/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS consumers (
    name TEXT PRIMARY KEY,
    record TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE TABLE IF NOT EXISTS schedules (
    consumer TEXT NOT NULL,
    position INTEGER NOT NULL,
    start_time INTEGER NOT NULL,
    price REAL NOT NULL,
    PRIMARY KEY (consumer, position)
);`

// SQLiteStore persists consumer records and their remaining schedules in a
// SQLite database. It implements both the consumer state store and the
// schedule store used by the scheduler.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; modernc sqlite serialises anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (model.ConsumerRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM consumers WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ConsumerRecord{}, model.ErrConsumerNotFound
	}
	if err != nil {
		return model.ConsumerRecord{}, err
	}
	var rec model.ConsumerRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return model.ConsumerRecord{}, fmt.Errorf("unmarshal record %s: %w", name, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Set(ctx context.Context, rec model.ConsumerRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO consumers (name, record, updated_at) VALUES (?, ?, strftime('%s','now'))
         ON CONFLICT(name) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		rec.Name, string(b))
	return err
}

// List returns every record ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]model.ConsumerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM consumers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ConsumerRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.ConsumerRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Delete removes the record of name together with its schedules.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM consumers WHERE name = ?`, name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE consumer = ?`, name)
		return err
	})
}

// Schedules returns the remaining slots of consumer in stored order.
func (s *SQLiteStore) Schedules(ctx context.Context, consumer string) ([]model.ScheduleSlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_time, price FROM schedules WHERE consumer = ? ORDER BY position`, consumer)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ScheduleSlot
	for rows.Next() {
		var ts int64
		var slot model.ScheduleSlot
		if err := rows.Scan(&ts, &slot.Price); err != nil {
			return nil, err
		}
		slot.StartTime = time.Unix(ts, 0).UTC()
		res = append(res, slot)
	}
	return res, rows.Err()
}

// SetSchedules replaces the slots of consumer. An empty slice clears them.
func (s *SQLiteStore) SetSchedules(ctx context.Context, consumer string, slots []model.ScheduleSlot) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE consumer = ?`, consumer); err != nil {
			return err
		}
		for i, slot := range slots {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schedules (consumer, position, start_time, price) VALUES (?, ?, ?, ?)`,
				consumer, i, slot.StartTime.Unix(), slot.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback: %v (cause: %w)", rerr, err)
		}
		return err
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
