package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smazurov/hlsnode/internal/records"
)

const schema = `CREATE TABLE IF NOT EXISTS streams(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	pid INTEGER NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const selectColumns = `SELECT id, name, url, pid, created_at, updated_at FROM streams`

// sqliteStore keeps records in a SQLite database.
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (and creates if needed) the SQLite store at path.
// ":memory:" gives a private in-memory database.
func NewSQLite(path string) (records.Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout=3000;", schema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite db: %w", err)
		}
	}

	return &sqliteStore{db: db, now: time.Now}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (records.Record, error) {
	var (
		rec                  records.Record
		pid                  sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.SourceURL, &pid, &createdAt, &updatedAt); err != nil {
		return records.Record{}, err
	}
	if pid.Valid {
		rec.PID = records.IntPtr(int(pid.Int64))
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

func (s *sqliteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullablePID(pid *int) any {
	if pid == nil {
		return nil
	}
	return *pid
}

func (s *sqliteStore) List() ([]records.Record, error) {
	rows, err := s.db.QueryContext(context.Background(), selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) getOne(query string, arg any, what string) (records.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(context.Background(), query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, fmt.Errorf("%s: %w", what, records.ErrNotFound)
	}
	if err != nil {
		return records.Record{}, fmt.Errorf("get %s: %w", what, err)
	}
	return rec, nil
}

func (s *sqliteStore) GetByID(id int64) (records.Record, error) {
	return s.getOne(selectColumns+` WHERE id = ?`, id, fmt.Sprintf("record %d", id))
}

func (s *sqliteStore) GetByPID(pid int) (records.Record, error) {
	return s.getOne(selectColumns+` WHERE pid = ? ORDER BY id LIMIT 1`, pid, fmt.Sprintf("record with pid %d", pid))
}

func (s *sqliteStore) Create(params records.CreateParams) (records.Record, error) {
	if err := params.Validate(); err != nil {
		return records.Record{}, err
	}

	ts := s.timestamp()
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO streams(name, url, pid, created_at, updated_at) VALUES(?, ?, NULL, ?, ?)`,
		params.Name, params.SourceURL, ts, ts)
	if isUniqueViolation(err) {
		return records.Record{}, fmt.Errorf("%q: %w", params.Name, records.ErrConflict)
	}
	if err != nil {
		return records.Record{}, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return records.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return s.GetByID(id)
}

func (s *sqliteStore) Update(id int64, params records.UpdateParams) (records.Record, error) {
	if err := params.Validate(); err != nil {
		return records.Record{}, err
	}

	current, err := s.GetByID(id)
	if err != nil {
		return records.Record{}, err
	}
	next := params.Apply(current)

	_, err = s.db.ExecContext(context.Background(),
		`UPDATE streams SET name = ?, url = ?, updated_at = ? WHERE id = ?`,
		next.Name, next.SourceURL, s.timestamp(), id)
	if isUniqueViolation(err) {
		return records.Record{}, fmt.Errorf("%q: %w", next.Name, records.ErrConflict)
	}
	if err != nil {
		return records.Record{}, fmt.Errorf("update record %d: %w", id, err)
	}
	return s.GetByID(id)
}

func (s *sqliteStore) Delete(id int64) (records.Record, error) {
	current, err := s.GetByID(id)
	if err != nil {
		return records.Record{}, err
	}
	res, err := s.db.ExecContext(context.Background(), `DELETE FROM streams WHERE id = ?`, id)
	if err != nil {
		return records.Record{}, fmt.Errorf("delete record %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return records.Record{}, fmt.Errorf("record %d: %w", id, records.ErrNotFound)
	}
	return current, nil
}

func (s *sqliteStore) SetPID(id int64, pid *int) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE streams SET pid = ?, updated_at = ? WHERE id = ?`,
		nullablePID(pid), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set pid on record %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %d: %w", id, records.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) ClearStalePIDs() ([]records.Record, error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, selectColumns+` WHERE pid IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stale pids: %w", err)
	}
	var stale []records.Record
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("scan record: %w", scanErr)
		}
		stale = append(stale, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE streams SET pid = NULL, updated_at = ? WHERE pid IS NOT NULL`, s.timestamp()); err != nil {
		return nil, fmt.Errorf("clear stale pids: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stale, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
