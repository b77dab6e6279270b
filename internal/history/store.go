package history

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"panic-list/internal/slogutil"
)

var (
	// ErrNotFound is returned when no run matches an id.
	ErrNotFound = stderrors.New("run not found")
	// ErrAmbiguous is returned when an id prefix matches more than one run.
	ErrAmbiguous = stderrors.New("run id prefix is ambiguous")
)

const (
	schemaVersion = 1
	defaultLimit  = 20

	// timeLayout is fixed width so created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store persists runs in a SQLite database.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// Open opens or creates the history database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create report encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create report decoder: %w", err)
	}

	store := &Store{conn: conn, logger: logger, dbPath: dbPath, enc: enc, dec: dec}
	if err := store.initializeSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	logger.Debug("Opened history database", "path", dbPath)
	return store, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			package TEXT NOT NULL,
			profile TEXT NOT NULL,
			max_depth INTEGER NOT NULL,
			root TEXT NOT NULL,
			exported INTEGER NOT NULL DEFAULT 0,
			chains INTEGER NOT NULL DEFAULT 0,
			lines INTEGER NOT NULL DEFAULT 0,
			fingerprint TEXT NOT NULL,
			created_at TEXT NOT NULL,
			report BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}
	_, err := s.conn.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.enc != nil {
		_ = s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Record stores a run. The report text is compressed with zstd.
func (s *Store) Record(ctx context.Context, run *Run) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO runs (id, package, profile, max_depth, root, exported, chains, lines, fingerprint, created_at, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Package,
		run.Profile,
		run.MaxDepth,
		run.Root,
		run.Exported,
		run.Chains,
		run.Lines,
		run.Fingerprint,
		run.CreatedAt.UTC().Format(timeLayout),
		s.enc.EncodeAll(run.Report, nil),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debug("Recorded run",
		"runId", run.ID,
		"chains", run.Chains,
		"reportBytes", len(run.Report),
	)
	return nil
}

// List returns the most recent runs, newest first, without their reports.
// A limit of zero or less selects a default.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, package, profile, max_depth, root, exported, chains, lines, fingerprint, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Package, &run.Profile, &run.MaxDepth, &run.Root,
			&run.Exported, &run.Chains, &run.Lines, &run.Fingerprint, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.CreatedAt = parseTime(createdAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Get returns the run whose id starts with prefix, report included.
func (s *Store) Get(ctx context.Context, prefix string) (*Run, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, ErrNotFound
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, package, profile, max_depth, root, exported, chains, lines, fingerprint, created_at, report
		FROM runs
		WHERE substr(id, 1, ?) = ?
		LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Run
	for rows.Next() {
		var run Run
		var createdAt string
		var blob []byte
		if err := rows.Scan(&run.ID, &run.Package, &run.Profile, &run.MaxDepth, &run.Root,
			&run.Exported, &run.Chains, &run.Lines, &run.Fingerprint, &createdAt, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.CreatedAt = parseTime(createdAt)
		if len(blob) > 0 {
			report, err := s.dec.DecodeAll(blob, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress report of run %s: %w", run.ID, err)
			}
			run.Report = report
		}
		found = append(found, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// LatestByFingerprint returns the newest run recorded for the same call
// graph, or nil when there is none.
func (s *Store) LatestByFingerprint(ctx context.Context, fingerprint string) (*Run, error) {
	var id string
	err := s.conn.QueryRowContext(ctx, `
		SELECT id FROM runs WHERE fingerprint = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, fingerprint).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up fingerprint: %w", err)
	}
	return s.Get(ctx, id)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
