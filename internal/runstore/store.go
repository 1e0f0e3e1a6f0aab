package runstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/xid"
)

var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Run records one integration request for later lookup.
type Run struct {
	ID             string     `json:"id"`
	SourceLocation string     `json:"sourceLocation"`
	TargetLocation string     `json:"targetLocation"`
	Branch         string     `json:"branch,omitempty"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Store keeps run records in memory, optionally backed by Postgres when a
// DSN is configured. Reads go through an LRU cache in front of the database.
type Store struct {
	db *sql.DB

	mu   sync.RWMutex
	byID map[string]Run

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, Run]
}

func New() *Store {
	return &Store{byID: make(map[string]Run)}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Run](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, byID: make(map[string]Run), cache: cache}, nil
}

// NewFromDSN picks the Postgres store when dsn is set, falling back to the
// in-memory store otherwise (and on connection failure).
func NewFromDSN(dsn string) *Store {
	if strings.TrimSpace(dsn) == "" {
		return New()
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New()
	}
	return s
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source_location TEXT NOT NULL,
	target_location TEXT NOT NULL,
	branch TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
)`)
	})
	return s.schemaErr
}

// Begin creates a running record and returns its id.
func (s *Store) Begin(ctx context.Context, sourceLocation, targetLocation, branch string) (Run, error) {
	run := Run{
		ID:             xid.New().String(),
		SourceLocation: sourceLocation,
		TargetLocation: targetLocation,
		Branch:         branch,
		Status:         StatusRunning,
		StartedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[run.ID] = run
	s.mu.Unlock()

	if s.db != nil {
		if err := s.ensureSchema(ctx); err != nil {
			return Run{}, err
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, source_location, target_location, branch, status, started_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			run.ID, run.SourceLocation, run.TargetLocation, run.Branch, run.Status, run.StartedAt)
		if err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

// Finish marks a run complete or failed.
func (s *Store) Finish(ctx context.Context, id, status, errMsg string) error {
	now := time.Now().UTC()

	s.mu.Lock()
	run, ok := s.byID[id]
	if ok {
		run.Status = status
		run.Error = errMsg
		run.FinishedAt = &now
		s.byID[id] = run
	}
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Remove(id)
	}
	if s.db != nil {
		if err := s.ensureSchema(ctx); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = $2, error = $3, finished_at = $4 WHERE id = $1`,
			id, status, errMsg, now)
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Get returns one run record.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	if s.cache != nil {
		if run, ok := s.cache.Get(id); ok {
			return run, nil
		}
	}

	s.mu.RLock()
	run, ok := s.byID[id]
	s.mu.RUnlock()
	if ok {
		return run, nil
	}

	if s.db != nil {
		if err := s.ensureSchema(ctx); err != nil {
			return Run{}, err
		}
		row := s.db.QueryRowContext(ctx,
			`SELECT id, source_location, target_location, branch, status, error, started_at, finished_at
			 FROM runs WHERE id = $1`, id)
		var r Run
		var finished sql.NullTime
		err := row.Scan(&r.ID, &r.SourceLocation, &r.TargetLocation, &r.Branch, &r.Status, &r.Error, &r.StartedAt, &finished)
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		if err != nil {
			return Run{}, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if s.cache != nil {
			s.cache.Add(id, r)
		}
		return r, nil
	}
	return Run{}, ErrNotFound
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
