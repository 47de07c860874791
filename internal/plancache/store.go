package plancache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/translate"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added seq index on plans
const currentSchemaVersion = 1

// Entry is one logged plan.
type Entry struct {
	Key                string
	PlanID             string
	Model              string
	HQL                string
	Slots              int
	Result             string
	Hints              []string
	Cacheable          bool
	Untranslated       bool
	UncacheableReasons []string
	IRVersion          string
	TranslatorVersion  string
	Seq                int64

	// Parameters maps each bind parameter to the canonical JSON of the
	// value it held when the plan was first logged.
	Parameters map[string]string
}

// Store is the SQLite plan log.
type Store struct {
	db    *sql.DB
	clock Clock
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the clock used to stamp logged plans. By default Open
// resumes a counter from the highest logged seq.
func WithClock(c Clock) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Open creates or opens the plan log at path, applying pragmas and
// migrations. Safe to call repeatedly on the same file.
func Open(path string, opts ...StoreOption) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		var last int64
		if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM plans").Scan(&last); err != nil {
			db.Close()
			return nil, fmt.Errorf("read last seq: %w", err)
		}
		s.clock = NewCounterAt(last)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record logs p under its key. It reports whether the key was new; a plan
// already logged is left untouched.
func (s *Store) Record(ctx context.Context, p *translate.Plan) (bool, error) {
	if p == nil || p.Key == "" {
		return false, fmt.Errorf("record plan: missing key")
	}
	hints, err := marshalStrings(p.Hints)
	if err != nil {
		return false, fmt.Errorf("record plan: %w", err)
	}
	reasons, err := marshalStrings(p.UncacheableReasons)
	if err != nil {
		return false, fmt.Errorf("record plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("record plan: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO plans
		(key, plan_id, model, hql, slots, result, hints, cacheable, untranslated,
		 uncacheable_reasons, ir_version, translator_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`,
		p.Key,
		p.ID,
		p.Model,
		p.HQL(),
		p.Slots,
		p.Result.String(),
		hints,
		p.CanCachePlan,
		p.ContainsUntranslatedCalls,
		reasons,
		ir.IRVersion,
		ir.TranslatorVersion,
		s.clock.Next(),
	)
	if err != nil {
		return false, fmt.Errorf("record plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record plan: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	names := make([]string, 0, len(p.Parameters))
	for name := range p.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sample, err := ir.MarshalCanonical(p.Parameters[name])
		if err != nil {
			return false, fmt.Errorf("record plan: parameter %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plan_parameters (plan_key, name, sample) VALUES (?, ?, ?)
		`, p.Key, name, string(sample)); err != nil {
			return false, fmt.Errorf("record plan: parameter %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("record plan: %w", err)
	}
	return true, nil
}

// Lookup returns the plan logged under key.
func (s *Store) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, selectPlans+` WHERE key = ?`, key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if e.Parameters, err = s.readParameters(ctx, key); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// List returns every logged plan in seq order.
//
// Returns an empty slice (not nil) when nothing is logged.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectPlans+` ORDER BY seq ASC, key COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	rows.Close()

	for i := range entries {
		params, err := s.readParameters(ctx, entries[i].Key)
		if err != nil {
			return nil, err
		}
		entries[i].Parameters = params
	}
	return entries, nil
}

const selectPlans = `
	SELECT key, plan_id, model, hql, slots, result, hints, cacheable, untranslated,
	       uncacheable_reasons, ir_version, translator_version, seq
	FROM plans`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e              Entry
		hints, reasons string
	)
	err := row.Scan(
		&e.Key, &e.PlanID, &e.Model, &e.HQL, &e.Slots, &e.Result, &hints,
		&e.Cacheable, &e.Untranslated, &reasons, &e.IRVersion, &e.TranslatorVersion, &e.Seq,
	)
	if err == sql.ErrNoRows {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan plan: %w", err)
	}
	if err := json.Unmarshal([]byte(hints), &e.Hints); err != nil {
		return Entry{}, fmt.Errorf("plan %s: hints: %w", e.Key, err)
	}
	if err := json.Unmarshal([]byte(reasons), &e.UncacheableReasons); err != nil {
		return Entry{}, fmt.Errorf("plan %s: uncacheable reasons: %w", e.Key, err)
	}
	return e, nil
}

func (s *Store) readParameters(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, sample FROM plan_parameters
		WHERE plan_key = ?
		ORDER BY name COLLATE BINARY ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}
	defer rows.Close()

	params := map[string]string{}
	for rows.Next() {
		var name, sample string
		if err := rows.Scan(&name, &sample); err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		params[name] = sample
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parameters: %w", err)
	}
	return params, nil
}

// marshalStrings stores a string list as a canonical JSON array.
func marshalStrings(ss []string) (string, error) {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	b, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_plans_seq ON plans(seq)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
