// Package postgres implements the store.Store interface backed by PostgreSQL.
// Grid rows live in the application's own tables, described by model.Entity;
// component configuration lives in the grid_configs table created by the
// embedded migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already opened database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "grid_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) SelectRecords(ctx context.Context, rel *query.Relation) ([]model.Record, int, error) {
	return querySelectRecords(ctx, s.db, rel)
}

func (s *PostgresStore) FindRecord(ctx context.Context, e *model.Entity, id any) (model.Record, error) {
	return queryFindRecord(ctx, s.db, e, id)
}

func (s *PostgresStore) InsertRecord(ctx context.Context, e *model.Entity, r model.Record) (model.Record, error) {
	return queryInsertRecord(ctx, s.db, e, r)
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, e *model.Entity, id any, r model.Record) (model.Record, error) {
	return queryUpdateRecord(ctx, s.db, e, id, r)
}

func (s *PostgresStore) DeleteRecords(ctx context.Context, e *model.Entity, ids []any) (int, error) {
	return queryDeleteRecords(ctx, s.db, e, ids)
}

// InsertAt runs the position shift in its own transaction.
func (s *PostgresStore) InsertAt(ctx context.Context, e *model.Entity, id any, position int) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.InsertAt(ctx, e, id, position)
	})
}

func (s *PostgresStore) DistinctValues(ctx context.Context, rel *query.Relation, field, prefix string) ([]any, error) {
	return queryDistinctValues(ctx, s.db, rel, field, prefix)
}

func (s *PostgresStore) SetConfig(ctx context.Context, config *model.Config) error {
	return querySetConfig(ctx, s.db, config)
}

func (s *PostgresStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return queryGetConfig(ctx, s.db, key)
}

func (s *PostgresStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return queryListConfigs(ctx, s.db, namespace)
}

func (s *PostgresStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return queryListAllConfigs(ctx, s.db)
}

func (s *PostgresStore) DeleteConfig(ctx context.Context, key string) error {
	return queryDeleteConfig(ctx, s.db, key)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) SelectRecords(ctx context.Context, rel *query.Relation) ([]model.Record, int, error) {
	return querySelectRecords(ctx, s.tx, rel)
}

func (s *txStore) FindRecord(ctx context.Context, e *model.Entity, id any) (model.Record, error) {
	return queryFindRecord(ctx, s.tx, e, id)
}

func (s *txStore) InsertRecord(ctx context.Context, e *model.Entity, r model.Record) (model.Record, error) {
	return queryInsertRecord(ctx, s.tx, e, r)
}

func (s *txStore) UpdateRecord(ctx context.Context, e *model.Entity, id any, r model.Record) (model.Record, error) {
	return queryUpdateRecord(ctx, s.tx, e, id, r)
}

func (s *txStore) DeleteRecords(ctx context.Context, e *model.Entity, ids []any) (int, error) {
	return queryDeleteRecords(ctx, s.tx, e, ids)
}

func (s *txStore) InsertAt(ctx context.Context, e *model.Entity, id any, position int) error {
	return queryInsertAt(ctx, s.tx, e, id, position)
}

func (s *txStore) DistinctValues(ctx context.Context, rel *query.Relation, field, prefix string) ([]any, error) {
	return queryDistinctValues(ctx, s.tx, rel, field, prefix)
}

func (s *txStore) SetConfig(ctx context.Context, config *model.Config) error {
	return querySetConfig(ctx, s.tx, config)
}

func (s *txStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return queryGetConfig(ctx, s.tx, key)
}

func (s *txStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return queryListConfigs(ctx, s.tx, namespace)
}

func (s *txStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return queryListAllConfigs(ctx, s.tx)
}

func (s *txStore) DeleteConfig(ctx context.Context, key string) error {
	return queryDeleteConfig(ctx, s.tx, key)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
