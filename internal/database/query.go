package database

import (
	"database/sql"
	"time"
)

const deletionColumns = `id, run_id, timestamp, path, rel_path, dir, file_name`

const sweepColumns = `id, base_dir, root, started_at, finished_at, deleted_count, status, error_message`

// GetRecentDeletions returns the N most recent deleted files
func (d *SweepDB) GetRecentDeletions(limit int) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetDeletionsByRun returns the files deleted by one sweep in deletion order
func (d *SweepDB) GetDeletionsByRun(runID string) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetDeletionsByPath returns deletions whose path matches a LIKE pattern
func (d *SweepDB) GetDeletionsByPath(pathPattern string) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	WHERE path LIKE ? OR rel_path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern, pathPattern)
}

// GetDeletionsByDateRange returns deletions within a time range
func (d *SweepDB) GetDeletionsByDateRange(start, end time.Time) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start, end)
}

// GetRecentSweeps returns the N most recently started sweeps
func (d *SweepDB) GetRecentSweeps(limit int) ([]SweepRecord, error) {
	rows, err := d.db.Query(`
	SELECT `+sweepColumns+`
	FROM sweeps
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SweepRecord
	for rows.Next() {
		r, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetSweep returns one sweep by run ID
func (d *SweepDB) GetSweep(id string) (SweepRecord, error) {
	row := d.db.QueryRow(`SELECT `+sweepColumns+` FROM sweeps WHERE id = ?`, id)
	return scanSweep(row)
}

// GetTopDirectories returns the directories with the most deleted files
func (d *SweepDB) GetTopDirectories(limit int) (map[string]int, error) {
	rows, err := d.db.Query(`
	SELECT dir, COUNT(*) as count
	FROM deletions
	GROUP BY dir
	ORDER BY count DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var dir string
		var count int
		if err := rows.Scan(&dir, &count); err != nil {
			return nil, err
		}
		counts[dir] = count
	}

	return counts, rows.Err()
}

// SweepStats holds aggregated statistics
type SweepStats struct {
	TotalSweeps    int
	FailedSweeps   int
	MissingRoots   int
	FilesDeleted   int
	TopDirectories map[string]int
	StartDate      time.Time
	EndDate        time.Time
}

// GetSweepStats returns statistics for the last N days
func (d *SweepDB) GetSweepStats(days int) (*SweepStats, error) {
	since := time.Now().AddDate(0, 0, -days)
	now := time.Now()

	stats := &SweepStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'ERROR' THEN 1 END),
			COUNT(CASE WHEN status = 'MISSING' THEN 1 END)
		FROM sweeps
		WHERE started_at >= ?
	`, since).Scan(&stats.TotalSweeps, &stats.FailedSweeps, &stats.MissingRoots)
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRow(`
		SELECT COUNT(*) FROM deletions WHERE timestamp >= ?
	`, since).Scan(&stats.FilesDeleted)
	if err != nil {
		return nil, err
	}

	stats.TopDirectories, err = d.GetTopDirectories(10)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes sweeps and their deletions older than the given days
func (d *SweepDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM deletions WHERE run_id IN (SELECT id FROM sweeps WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, err
	}
	result, err := tx.Exec(`DELETE FROM sweeps WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSweep(row rowScanner) (SweepRecord, error) {
	var r SweepRecord
	var finished sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(
		&r.ID, &r.BaseDir, &r.Root, &r.StartedAt, &finished,
		&r.DeletedCount, &r.Status, &errMsg,
	); err != nil {
		return SweepRecord{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	return r, nil
}

// queryDeletions is a helper function to execute queries and scan results
func (d *SweepDB) queryDeletions(query string, args ...interface{}) ([]DeletionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Path, &r.RelPath, &r.Dir, &r.FileName,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
