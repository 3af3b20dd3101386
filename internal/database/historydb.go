package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/a11yscan/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "a11yscan.db"

// HistoryDB provides SQLite-based storage for run reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		failed INTEGER NOT NULL DEFAULT 0,
		summary TEXT,
		report_zstd BLOB NOT NULL,
		report_size INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRunReport stores a run report and returns its ID.
func (h *HistoryDB) SaveRunReport(ctx context.Context, report *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(newRunSummary(report))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	failed := 0
	if report.Failed() {
		failed = 1
	}

	query := `
	INSERT INTO runs (target, started_at, finished_at, failed, summary, report_zstd, report_size)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := h.db.ExecContext(ctx, query,
		report.Target,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		failed,
		string(summaryJSON),
		compress(reportJSON),
		len(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// GetLatestRunReport retrieves the most recent run report for a target.
// It returns nil, nil when the target has no history.
func (h *HistoryDB) GetLatestRunReport(ctx context.Context, target string) (*model.RunReport, error) {
	query := `
	SELECT report_zstd, report_size FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	return h.queryReport(ctx, query, target)
}

// GetRunReportByID retrieves a run report by its database ID.
// It returns nil, nil when no such run exists.
func (h *HistoryDB) GetRunReportByID(ctx context.Context, id int64) (*model.RunReport, error) {
	query := `
	SELECT report_zstd, report_size FROM runs
	WHERE id = ?
	`
	return h.queryReport(ctx, query, id)
}

func (h *HistoryDB) queryReport(ctx context.Context, query string, args ...any) (*model.RunReport, error) {
	var blob []byte
	var size int
	err := h.db.QueryRowContext(ctx, query, args...).Scan(&blob, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}
	return decodeReport(blob, size)
}

func decodeReport(blob []byte, size int) (*model.RunReport, error) {
	data, err := decompress(blob, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report model.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListTargets returns every target with stored history.
func (h *HistoryDB) ListTargets(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT target FROM runs
	ORDER BY target
	`

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// GetRunHistory retrieves all run reports for a target, newest first.
// Reports that cannot be decoded are skipped.
func (h *HistoryDB) GetRunHistory(ctx context.Context, target string) ([]*model.RunReport, error) {
	query := `
	SELECT report_zstd, report_size FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := h.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.RunReport
	for rows.Next() {
		var blob []byte
		var size int
		if err := rows.Scan(&blob, &size); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(blob, size)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunSummary holds the counts stored next to each report.
type RunSummary struct {
	Total      int            `json:"total"`
	Passed     int            `json:"passed"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Errored    int            `json:"errored"`
	Violations map[string]int `json:"violations"`
}

func newRunSummary(report *model.RunReport) RunSummary {
	s := model.NewSummary(report)
	out := RunSummary{
		Total:      s.Total,
		Passed:     s.Passed,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		Errored:    s.Errored,
		Violations: make(map[string]int),
	}
	for _, impact := range model.AllImpacts() {
		if n := s.CountForImpact(impact); n > 0 {
			out.Violations[impact.String()] = n
		}
	}
	return out
}

// RunMetadata contains summary information about a stored run.
// It is used for displaying history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Target is the base URL that was checked.
	Target string

	// StartedAt is when the run started.
	StartedAt time.Time

	// Failed is true when any check failed.
	Failed bool

	// Summary holds check and violation counts.
	Summary RunSummary
}

// GetRunHistoryWithMetadata retrieves run metadata for a target, newest first.
// This is more efficient than GetRunHistory when only metadata is needed.
func (h *HistoryDB) GetRunHistoryWithMetadata(ctx context.Context, target string) ([]RunMetadata, error) {
	query := `
	SELECT id, target, started_at, failed, summary
	FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := h.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var failed int
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Target, &startedAt, &failed, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.Failed = failed != 0
		if summaryJSON.Valid && summaryJSON.String != "" {
			_ = json.Unmarshal([]byte(summaryJSON.String), &meta.Summary) //nolint:errcheck // a damaged summary leaves zero counts
		}
		if meta.Summary.Violations == nil {
			meta.Summary.Violations = make(map[string]int)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// DeleteRunsBefore removes runs of target that started before t and
// returns how many were removed. An empty target matches every target.
func (h *HistoryDB) DeleteRunsBefore(ctx context.Context, target string, t time.Time) (int64, error) {
	query := `DELETE FROM runs WHERE started_at < ?`
	args := []any{formatTimestamp(t)}
	if target != "" {
		query += ` AND target = ?`
		args = append(args, target)
	}
	res, err := h.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

// timestampLayout sorts lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats the runs table may hold.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
