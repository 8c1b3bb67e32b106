package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"empty-sweep/internal/database"
	"empty-sweep/internal/exitcodes"
)

func main() {
	dbPath := flag.String("db", "/var/lib/empty-sweep/history.db", "Path to sweep history database")
	recent := flag.Int("recent", 0, "Show N most recent deletions")
	runs := flag.Int("runs", 0, "Show N most recent sweeps")
	runID := flag.String("run", "", "Show the sweep with this ID and the files it deleted")
	pathPattern := flag.String("path", "", "Filter deletions by path pattern (SQL LIKE syntax)")
	stats := flag.Bool("stats", false, "Show sweep statistics")
	days := flag.Int("days", 30, "Number of days for statistics (default: 30)")
	prune := flag.Int("prune", 0, "Delete history older than N days, then vacuum")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	db, err := database.NewSweepDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	switch {
	case *stats:
		showStats(db, *days, *jsonOutput)
	case *recent > 0:
		showRecent(db, *recent, *jsonOutput)
	case *runs > 0:
		showRuns(db, *runs, *jsonOutput)
	case *runID != "":
		showRun(db, *runID, *jsonOutput)
	case *pathPattern != "":
		showByPath(db, *pathPattern, *jsonOutput)
	case *prune > 0:
		pruneHistory(db, *prune)
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  empty-sweep-query --recent 10           # Show 10 most recent deletions")
		fmt.Println("  empty-sweep-query --runs 5              # Show the last 5 sweeps")
		fmt.Println("  empty-sweep-query --run <id>            # Show one sweep and its deletions")
		fmt.Println("  empty-sweep-query --path '%.map'        # Show deleted source maps")
		fmt.Println("  empty-sweep-query --stats --days 7      # Show statistics for the last week")
		fmt.Println("  empty-sweep-query --prune 90            # Drop history older than 90 days")
		os.Exit(exitcodes.InvalidConfig)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("ERROR: Failed to encode JSON: %v", err)
	}
	fmt.Println(string(data))
}

func showStats(db *database.SweepDB, days int, jsonOutput bool) {
	stats, err := db.GetSweepStats(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to get statistics: %v", err)
	}

	if jsonOutput {
		printJSON(stats)
		return
	}

	fmt.Printf("Sweep Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Total Sweeps:     %d\n", stats.TotalSweeps)
	fmt.Printf("Failed Sweeps:    %d\n", stats.FailedSweeps)
	fmt.Printf("Missing Roots:    %d\n", stats.MissingRoots)
	fmt.Printf("Files Deleted:    %d\n\n", stats.FilesDeleted)

	if len(stats.TopDirectories) > 0 {
		dirs := make([]string, 0, len(stats.TopDirectories))
		for dir := range stats.TopDirectories {
			dirs = append(dirs, dir)
		}
		sort.Slice(dirs, func(i, j int) bool {
			if stats.TopDirectories[dirs[i]] != stats.TopDirectories[dirs[j]] {
				return stats.TopDirectories[dirs[i]] > stats.TopDirectories[dirs[j]]
			}
			return dirs[i] < dirs[j]
		})
		fmt.Println("Top Directories:")
		for _, dir := range dirs {
			fmt.Printf("  %-40s %d\n", dir, stats.TopDirectories[dir])
		}
	}
}

func showRecent(db *database.SweepDB, limit int, jsonOutput bool) {
	records, err := db.GetRecentDeletions(limit)
	if err != nil {
		log.Fatalf("ERROR: Failed to get recent deletions: %v", err)
	}

	if jsonOutput {
		printJSON(records)
		return
	}

	printDeletions(records)
}

func showRuns(db *database.SweepDB, limit int, jsonOutput bool) {
	sweeps, err := db.GetRecentSweeps(limit)
	if err != nil {
		log.Fatalf("ERROR: Failed to get recent sweeps: %v", err)
	}

	if jsonOutput {
		printJSON(sweeps)
		return
	}

	printSweeps(sweeps)
}

func showRun(db *database.SweepDB, id string, jsonOutput bool) {
	rec, err := db.GetSweep(id)
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Printf("No sweep with ID %s\n", id)
		os.Exit(exitcodes.RuntimeError)
	}
	if err != nil {
		log.Fatalf("ERROR: Failed to get sweep: %v", err)
	}
	deletions, err := db.GetDeletionsByRun(id)
	if err != nil {
		log.Fatalf("ERROR: Failed to get deletions: %v", err)
	}

	if jsonOutput {
		printJSON(struct {
			Sweep     database.SweepRecord
			Deletions []database.DeletionRecord
		}{rec, deletions})
		return
	}

	printSweeps([]database.SweepRecord{rec})
	fmt.Println()
	printDeletions(deletions)
}

func showByPath(db *database.SweepDB, pathPattern string, jsonOutput bool) {
	records, err := db.GetDeletionsByPath(pathPattern)
	if err != nil {
		log.Fatalf("ERROR: Failed to query by path: %v", err)
	}

	if jsonOutput {
		printJSON(records)
		return
	}

	fmt.Printf("Deletions matching path pattern: %s\n\n", pathPattern)
	printDeletions(records)
}

func pruneHistory(db *database.SweepDB, days int) {
	removed, err := db.DeleteOldRecords(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to prune history: %v", err)
	}
	if err := db.Vacuum(); err != nil {
		log.Fatalf("ERROR: Failed to vacuum database: %v", err)
	}
	fmt.Printf("Removed %d records older than %d days\n", removed, days)
}

func printSweeps(sweeps []database.SweepRecord) {
	if len(sweeps) == 0 {
		fmt.Println("No sweeps found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tStarted\tDuration\tStatus\tDeleted\tRoot")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t------\t-------\t----")

	for _, s := range sweeps {
		duration := "-"
		if s.FinishedAt != nil {
			duration = s.FinishedAt.Sub(s.StartedAt).String()
		}
		status := s.Status
		if s.ErrorMessage != "" {
			status += " (" + s.ErrorMessage + ")"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), duration, status, s.DeletedCount, s.Root)
	}
	_ = w.Flush()
}

func printDeletions(records []database.DeletionRecord) {
	if len(records) == 0 {
		fmt.Println("No records found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tRun\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t---\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), shortID(r.RunID), r.RelPath)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
