// Package dashboard manages user-uploaded custom datasets: the uploaded CSV
// on disk plus a registry record in SQLite, keyed by a timestamp-derived id.
package dashboard

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// ErrNotFound reports a dashboard id with no registry record.
var ErrNotFound = eris.New("dashboard: not found")

// Record is one registered custom dataset.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	FilePath    string    `json:"-"`
	Columns     []string  `json:"filterable_columns"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the SQLite-backed dashboard registry.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the registry database and ensures the schema.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrapf(err, "dashboard: open registry %s", path)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS dashboards (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		file_path   TEXT NOT NULL,
		columns     TEXT NOT NULL DEFAULT '[]',
		created_at  INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "dashboard: create registry table")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Insert registers a dashboard.
func (s *Store) Insert(r Record) error {
	cols, err := json.Marshal(r.Columns)
	if err != nil {
		return eris.Wrap(err, "dashboard: encode columns")
	}
	_, err = s.db.Exec(
		`INSERT INTO dashboards (id, name, description, file_path, columns, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, r.FilePath, string(cols), r.CreatedAt.Unix(),
	)
	if err != nil {
		return eris.Wrapf(err, "dashboard: insert %s", r.ID)
	}
	return nil
}

// Get returns one record, or ErrNotFound.
func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, file_path, columns, created_at FROM dashboards WHERE id = ?`, id)
	r, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, eris.Wrapf(err, "dashboard: get %s", id)
	}
	return r, nil
}

// List returns every registered dashboard, newest first.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, file_path, columns, created_at FROM dashboards ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: list")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "dashboard: scan record")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dashboard: iterate records")
	}
	return out, nil
}

// Delete removes a registry record. Deleting an unknown id returns
// ErrNotFound.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM dashboards WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "dashboard: delete %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "dashboard: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(scan func(...any) error) (Record, error) {
	var r Record
	var cols string
	var created int64
	if err := scan(&r.ID, &r.Name, &r.Description, &r.FilePath, &cols, &created); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(cols), &r.Columns); err != nil {
		return Record{}, eris.Wrap(err, "decode columns")
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}
