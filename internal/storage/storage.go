// Package storage persists draws, the companion knowledge base and oracle
// predictions in a SQL database. SQLite (pure Go) is the default backend;
// PostgreSQL and MySQL are supported for shared deployments.
//
// Draws are deduplicated by models.DrawID: re-inserting a draw that already
// exists is a no-op, so collectors can upsert overlapping result windows.
// Each new draw gets the next insertion sequence number; draws sharing a
// timestamp are read back in insertion order.
// The statistics code never sees the database; Storage implements
// draws.Source and hands back raw rows for normalization.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// Supported backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// drawTimeLayout stores draw times as local civil time; the location is
// applied again when rows are normalized.
const drawTimeLayout = "2006-01-02 15:04:05"

// createdAtLayout is fixed width so that text ordering is time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StoreError is a failed storage operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Storage is a SQL-backed store. It is safe for concurrent use.
type Storage struct {
	db      *sql.DB
	backend string
}

var _ draws.Source = (*Storage)(nil) // Compile-time check

// New opens the database for backend and creates missing tables.
// An empty SQLite dsn uses a file in the OS temp directory.
func New(backend, dsn string) (*Storage, error) {
	var driverName string

	switch backend {
	case "", BackendSQLite:
		backend = BackendSQLite
		driverName = "sqlite"
		if dsn == "" {
			dsn = filepath.Join(os.TempDir(), "lotoracle", "lotoracle.db")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case BackendPostgres:
		driverName = "pgx"
	case BackendMySQL:
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", backend, err)
	}
	if backend == BackendSQLite {
		// One connection: avoids "database is locked" and keeps :memory: databases alive
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", backend, err)
	}

	s := &Storage{db: db, backend: backend}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Backend returns the backend name.
func (s *Storage) Backend() string {
	return s.backend
}

func (s *Storage) createTables() error {
	boolType := "INTEGER"
	if s.backend == BackendMySQL {
		boolType = "TINYINT"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS draws (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			seq BIGINT NOT NULL,
			drawn_at VARCHAR(19) NOT NULL,
			label VARCHAR(128) NOT NULL,
			winning VARCHAR(255) NOT NULL,
			machine VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge (
			number INTEGER NOT NULL PRIMARY KEY,
			companions TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS predictions (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			target_date VARCHAR(10) NOT NULL,
			last_draw_id VARCHAR(64) NOT NULL,
			prompt TEXT NOT NULL,
			reply TEXT NOT NULL,
			numbers VARCHAR(32) NOT NULL,
			error_text TEXT NOT NULL,
			cached %s NOT NULL,
			created_at VARCHAR(40) NOT NULL
		)`, boolType),
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for PostgreSQL.
func (s *Storage) rebind(query string) string {
	if s.backend != BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Storage) insertIgnore(table, columns string, placeholders int) string {
	values := strings.TrimSuffix(strings.Repeat("?, ", placeholders), ", ")
	switch s.backend {
	case BackendMySQL:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
	default:
		return s.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, columns, values))
	}
}

// UpsertDraws stores draws that are not yet known and returns how many were added.
func (s *Storage) UpsertDraws(ctx context.Context, ds []models.Draw) (int, error) {
	for i := range ds {
		if err := ds[i].Validate(); err != nil {
			return 0, wrap("upsert draws", fmt.Errorf("invalid draw %s: %w", ds[i].ID, err))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap("upsert draws", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM draws`).Scan(&seq); err != nil {
		return 0, wrap("upsert draws", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insertIgnore("draws", "id, seq, drawn_at, label, winning, machine", 6))
	if err != nil {
		return 0, wrap("upsert draws", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, d := range ds {
		res, err := stmt.ExecContext(ctx, d.ID, seq+1, d.Timestamp.Format(drawTimeLayout), d.Label,
			draws.FormatNumbers(d.Winning), draws.FormatNumbers(d.Machine))
		if err != nil {
			return 0, wrap("upsert draws", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
			seq++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("upsert draws", err)
	}
	return inserted, nil
}

// RawDraws implements draws.Source. Rows come back ordered by draw time,
// then insertion order.
func (s *Storage) RawDraws(ctx context.Context) ([]draws.RawDraw, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT drawn_at, label, winning, machine FROM draws ORDER BY drawn_at, seq`)
	if err != nil {
		return nil, wrap("raw draws", fmt.Errorf("%w: %v", draws.ErrSourceUnavailable, err))
	}
	defer func() { _ = rows.Close() }()

	var out []draws.RawDraw
	for rows.Next() {
		var r draws.RawDraw
		if err := rows.Scan(&r.Timestamp, &r.Label, &r.Winning, &r.Machine); err != nil {
			return nil, wrap("raw draws", err)
		}
		out = append(out, r)
	}
	return out, wrap("raw draws", rows.Err())
}

// CountDraws returns the number of stored draws.
func (s *Storage) CountDraws(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draws`).Scan(&n); err != nil {
		return 0, wrap("count draws", err)
	}
	return n, nil
}

// LatestDraw returns the most recent stored draw, or nil when there is none.
func (s *Storage) LatestDraw(ctx context.Context, loc *time.Location) (*models.Draw, error) {
	var r draws.RawDraw
	err := s.db.QueryRowContext(ctx,
		`SELECT drawn_at, label, winning, machine FROM draws ORDER BY drawn_at DESC, seq DESC LIMIT 1`).
		Scan(&r.Timestamp, &r.Label, &r.Winning, &r.Machine)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("latest draw", err)
	}

	out, _ := draws.Normalize([]draws.RawDraw{r}, loc)
	if len(out) == 0 {
		return nil, wrap("latest draw", fmt.Errorf("stored draw %s %s is invalid", r.Timestamp, r.Label))
	}
	return &out[0], nil
}

// SaveKnowledge replaces the stored knowledge base.
func (s *Storage) SaveKnowledge(ctx context.Context, kb models.KnowledgeBase) error {
	if err := kb.Validate(); err != nil {
		return wrap("save knowledge", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("save knowledge", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge`); err != nil {
		return wrap("save knowledge", err)
	}
	for _, n := range kb.Numbers() {
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO knowledge (number, companions) VALUES (?, ?)`),
			n, draws.FormatNumbers(kb.Companions(n)))
		if err != nil {
			return wrap("save knowledge", err)
		}
	}
	return wrap("save knowledge", tx.Commit())
}

// LoadKnowledge returns the stored knowledge base. An empty table yields an
// empty knowledge base.
func (s *Storage) LoadKnowledge(ctx context.Context) (models.KnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number, companions FROM knowledge`)
	if err != nil {
		return nil, wrap("load knowledge", fmt.Errorf("%w: %v", draws.ErrSourceUnavailable, err))
	}
	defer func() { _ = rows.Close() }()

	kb := models.NewKnowledgeBase()
	for rows.Next() {
		var n int
		var companions string
		if err := rows.Scan(&n, &companions); err != nil {
			return nil, wrap("load knowledge", err)
		}
		kb.Add(n, draws.ParseNumbers(companions)...)
	}
	return kb, wrap("load knowledge", rows.Err())
}

// SavePrediction stores a prediction.
func (s *Storage) SavePrediction(ctx context.Context, p *models.Prediction) error {
	if err := p.Validate(); err != nil {
		return wrap("save prediction", fmt.Errorf("invalid prediction: %w", err))
	}

	cached := 0
	if p.Cached {
		cached = 1
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO predictions
		(id, target_date, last_draw_id, prompt, reply, numbers, error_text, cached, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.TargetDate.Format(time.DateOnly), p.LastDrawID, p.Prompt, p.Reply,
		draws.FormatNumbers(p.Numbers), p.Error, cached, p.CreatedAt.UTC().Format(createdAtLayout))
	return wrap("save prediction", err)
}

// ListPredictions returns up to limit predictions, newest first.
func (s *Storage) ListPredictions(ctx context.Context, limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, target_date, last_draw_id, prompt, reply, numbers, error_text, cached, created_at
		FROM predictions ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, wrap("list predictions", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Prediction
	for rows.Next() {
		var p models.Prediction
		var target, numbers, created string
		var cached int
		if err := rows.Scan(&p.ID, &target, &p.LastDrawID, &p.Prompt, &p.Reply, &numbers, &p.Error, &cached, &created); err != nil {
			return nil, wrap("list predictions", err)
		}
		if p.TargetDate, err = time.Parse(time.DateOnly, target); err != nil {
			return nil, wrap("list predictions", err)
		}
		if p.CreatedAt, err = time.Parse(createdAtLayout, created); err != nil {
			return nil, wrap("list predictions", err)
		}
		p.Numbers = draws.ParseNumbers(numbers)
		p.Cached = cached != 0
		out = append(out, p)
	}
	return out, wrap("list predictions", rows.Err())
}
