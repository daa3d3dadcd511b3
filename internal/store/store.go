package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
)

// ErrUnsupported is returned by stores that cannot evaluate part of a
// relation, such as a raw predicate in the in-memory store.
var ErrUnsupported = errors.New("not supported by this store")

// Store defines the persistence interface for grid rows and component
// configuration. Record lookups that find nothing return sql.ErrNoRows.
type Store interface {
	// Records
	SelectRecords(ctx context.Context, rel *query.Relation) ([]model.Record, int, error) // returns rows, total count (ignoring pagination), error
	FindRecord(ctx context.Context, e *model.Entity, id any) (model.Record, error)
	InsertRecord(ctx context.Context, e *model.Entity, r model.Record) (model.Record, error)
	UpdateRecord(ctx context.Context, e *model.Entity, id any, r model.Record) (model.Record, error)
	DeleteRecords(ctx context.Context, e *model.Entity, ids []any) (int, error)

	// InsertAt moves the record to a 1-based list position, shifting its
	// siblings. The entity must be ordered.
	InsertAt(ctx context.Context, e *model.Entity, id any, position int) error

	// DistinctValues returns the distinct non-null values of one column of
	// rel, optionally restricted to values starting with prefix
	// (case-insensitive), sorted ascending.
	DistinctValues(ctx context.Context, rel *query.Relation, field string, prefix string) ([]any, error)

	// Configs
	SetConfig(ctx context.Context, config *model.Config) error
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error)
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
	DeleteConfig(ctx context.Context, key string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
