package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Sweep status values stored in the sweeps table
const (
	StatusRunning = "RUNNING"
	StatusOK      = "OK"
	StatusMissing = "MISSING"
	StatusError   = "ERROR"
)

// SweepDB manages the SQLite database for sweep history
type SweepDB struct {
	db *sql.DB
}

// SweepRecord represents one sweep of an output directory
type SweepRecord struct {
	ID           string
	BaseDir      string
	Root         string
	StartedAt    time.Time
	FinishedAt   *time.Time
	DeletedCount int
	Status       string
	ErrorMessage string
}

// DeletionRecord represents a single deleted file
type DeletionRecord struct {
	ID        int64
	RunID     string
	Timestamp time.Time
	Path      string
	RelPath   string
	Dir       string
	FileName  string
}

// NewSweepDB creates a new database connection and initializes schema
func NewSweepDB(dbPath string) (*SweepDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Ping would not create the file; a query does
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	sdb := &SweepDB{db: db}
	if err = sdb.initSchema(); err != nil {
		return nil, err
	}

	return sdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *SweepDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		base_dir TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		deleted_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES sweeps(id),
		timestamp DATETIME NOT NULL,
		path TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		dir TEXT NOT NULL,
		file_name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sweeps_started_at ON sweeps(started_at);
	CREATE INDEX IF NOT EXISTS idx_sweeps_status ON sweeps(status);
	CREATE INDEX IF NOT EXISTS idx_deletions_run_id ON deletions(run_id);
	CREATE INDEX IF NOT EXISTS idx_deletions_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_deletions_path ON deletions(path);
	CREATE INDEX IF NOT EXISTS idx_deletions_dir ON deletions(dir);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// StartSweep inserts a sweep in the RUNNING state
func (d *SweepDB) StartSweep(id, baseDir, root string, startedAt time.Time) error {
	_, err := d.db.Exec(`
	INSERT INTO sweeps (id, base_dir, root, started_at, status)
	VALUES (?, ?, ?, ?, ?)
	`, id, baseDir, root, startedAt, StatusRunning)
	return err
}

// FinishSweep records the outcome of a sweep started with StartSweep
func (d *SweepDB) FinishSweep(id string, finishedAt time.Time, deleted int, status, errorMsg string) error {
	var msg sql.NullString
	if errorMsg != "" {
		msg = sql.NullString{String: errorMsg, Valid: true}
	}

	res, err := d.db.Exec(`
	UPDATE sweeps
	SET finished_at = ?, deleted_count = ?, status = ?, error_message = ?
	WHERE id = ?
	`, finishedAt, deleted, status, msg, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sweep %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RecordDeletion inserts a deleted file for a sweep
func (d *SweepDB) RecordDeletion(runID, path, relPath string, at time.Time) error {
	_, err := d.db.Exec(`
	INSERT INTO deletions (run_id, timestamp, path, rel_path, dir, file_name)
	VALUES (?, ?, ?, ?, ?, ?)
	`, runID, at, path, relPath, filepath.Dir(relPath), filepath.Base(relPath))
	return err
}

// Close closes the database connection
func (d *SweepDB) Close() error {
	return d.db.Close()
}

// Ping verifies the database is still reachable, for health checks
func (d *SweepDB) Ping() error {
	return d.db.Ping()
}

// Vacuum optimizes the database (run periodically)
func (d *SweepDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *SweepDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalSweeps, totalDeletions int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM sweeps").Scan(&totalSweeps); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM deletions").Scan(&totalDeletions); err != nil {
		return nil, err
	}
	stats["total_sweeps"] = totalSweeps
	stats["total_deletions"] = totalDeletions

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	// Aggregates come back as text, not DATETIME
	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(started_at), MAX(started_at) FROM sweeps").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseTimestamp(oldest); ok {
		stats["oldest_sweep"] = t
	}
	if t, ok := parseTimestamp(newest); ok {
		stats["newest_sweep"] = t
	}

	return stats, nil
}

// timestampLayouts are the forms SQLite hands back for stored time.Time values
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
