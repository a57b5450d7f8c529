// Package archive persists the last-known-good raw dataset on disk so the
// mirror can serve data across restarts and upstream outages. It is the
// disk persistence collaborator of the refresh pipeline: the parser and
// builder never care whether bytes came from the network or from here.
//
// Storage is a single-file embedded SQLite database keyed by dataset date.
// A refresh saves the freshly fetched CSV and prunes superseded dates;
// startup and fetch-failure paths read the newest stored dataset back.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lmoretti/fibermirror/internal/fetch"
	_ "modernc.org/sqlite"
)

// ErrEmpty is returned by Latest and Get when no dataset is stored.
var ErrEmpty = errors.New("archive: no dataset stored")

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	dataset_date TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	fetched_at   INTEGER NOT NULL,
	csv          BLOB NOT NULL
);`

// Archive is a disk-backed store of raw dataset payloads.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database at path, creating parent
// directories as needed.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("archive: creating directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: opening database: %w", err)
	}
	// SQLite allows one writer; the refresh pipeline is the only client.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: initializing schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save stores a payload under its dataset date, replacing any previous
// payload for the same date, then prunes datasets older than it.
func (a *Archive) Save(ctx context.Context, p *fetch.Payload) error {
	date := p.DatasetDate.Format(dateLayout)

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO datasets(dataset_date, filename, fetched_at, csv) VALUES(?,?,?,?)
		 ON CONFLICT(dataset_date) DO UPDATE SET filename=excluded.filename, fetched_at=excluded.fetched_at, csv=excluded.csv`,
		date, p.Filename, p.FetchedAt.Unix(), p.CSV)
	if err != nil {
		return fmt.Errorf("archive: saving dataset %s: %w", date, err)
	}

	if _, err := a.db.ExecContext(ctx, `DELETE FROM datasets WHERE dataset_date < ?`, date); err != nil {
		return fmt.Errorf("archive: pruning datasets before %s: %w", date, err)
	}
	return nil
}

// Get returns the stored payload for an exact dataset date, or ErrEmpty.
func (a *Archive) Get(ctx context.Context, date time.Time) (*fetch.Payload, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT dataset_date, filename, fetched_at, csv FROM datasets WHERE dataset_date = ?`,
		date.Format(dateLayout))
	return scanPayload(row)
}

// Latest returns the newest stored payload, or ErrEmpty.
func (a *Archive) Latest(ctx context.Context) (*fetch.Payload, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT dataset_date, filename, fetched_at, csv FROM datasets ORDER BY dataset_date DESC LIMIT 1`)
	return scanPayload(row)
}

func scanPayload(row *sql.Row) (*fetch.Payload, error) {
	var (
		dateStr   string
		filename  string
		fetchedAt int64
		csvBytes  []byte
	)
	if err := row.Scan(&dateStr, &filename, &fetchedAt, &csvBytes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("archive: reading dataset: %w", err)
	}

	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("archive: corrupt dataset date %q: %w", dateStr, err)
	}

	return &fetch.Payload{
		CSV:         csvBytes,
		Filename:    filename,
		DatasetDate: date,
		FetchedAt:   time.Unix(fetchedAt, 0),
	}, nil
}
