package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS cycle_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER NOT NULL,
        cycle_id TEXT,
        aborted INTEGER NOT NULL,
        record TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS cycle_log_robots (
        log_id INTEGER NOT NULL REFERENCES cycle_logs(id),
        robot_id TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS cycle_logs_ts ON cycle_logs(ts);
    CREATE INDEX IF NOT EXISTS cycle_log_robots_robot ON cycle_log_robots(robot_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// involved lists every robot named by rec, once.
func involved(rec LogRecord) []string {
	seen := make(map[string]struct{}, len(rec.Robots))
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range rec.Robots {
		add(id)
	}
	if rec.Plan != nil {
		for id := range rec.Plan.Moves {
			add(id)
		}
		for id := range rec.Plan.Assignments {
			add(id)
		}
		for _, rel := range rec.Plan.Relocations {
			add(rel.RobotID)
		}
	}
	return ids
}

// Append writes the record and its robot index in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO cycle_logs (ts, cycle_id, aborted, record) VALUES (?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.CycleID, rec.Aborted(), string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, robot := range involved(rec) {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO cycle_log_robots (log_id, robot_id) VALUES (?, ?)`, id, robot); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM cycle_logs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.AbortedOnly {
		query += ` AND aborted = 1`
	}
	if q.RobotID != "" {
		query += ` AND id IN (SELECT log_id FROM cycle_log_robots WHERE robot_id = ?)`
		args = append(args, q.RobotID)
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []LogRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
