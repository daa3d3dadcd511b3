// Package memory implements store.Store in process memory. It backs the
// demo mode of the server and the tests of the packages above the store.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/idgen"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

type table struct {
	rows   []model.Record
	nextID int64
}

func (t *table) clone() *table {
	out := &table{nextID: t.nextID, rows: make([]model.Record, len(t.rows))}
	for i, r := range t.rows {
		out.rows[i] = r.Clone()
	}
	return out
}

type state struct {
	tables  map[string]*table
	configs map[string]model.Config
}

func (s *state) clone() *state {
	out := &state{
		tables:  make(map[string]*table, len(s.tables)),
		configs: make(map[string]model.Config, len(s.configs)),
	}
	for k, t := range s.tables {
		out.tables[k] = t.clone()
	}
	for k, c := range s.configs {
		out.configs[k] = c
	}
	return out
}

// Store is an in-memory store.Store. Transactions hold the store lock for
// their whole duration and restore a snapshot when they fail.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		st:  &state{tables: map[string]*table{}, configs: map[string]model.Config{}},
		now: time.Now,
	}
}

// Seed inserts rows as given, keeping any primary keys they carry.
func (s *Store) Seed(e *model.Entity, rows ...model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if _, err := s.st.insert(e, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SelectRecords(ctx context.Context, rel *query.Relation) ([]model.Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.selectRecords(rel)
}

func (s *Store) FindRecord(ctx context.Context, e *model.Entity, id any) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.find(e, id)
}

func (s *Store) InsertRecord(ctx context.Context, e *model.Entity, r model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insert(e, r)
}

func (s *Store) UpdateRecord(ctx context.Context, e *model.Entity, id any, r model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.update(e, id, r)
}

func (s *Store) DeleteRecords(ctx context.Context, e *model.Entity, ids []any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.delete(e, ids), nil
}

func (s *Store) InsertAt(ctx context.Context, e *model.Entity, id any, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertAt(e, id, position)
}

func (s *Store) DistinctValues(ctx context.Context, rel *query.Relation, field, prefix string) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.distinct(rel, field, prefix)
}

func (s *Store) SetConfig(ctx context.Context, c *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.setConfig(c, s.now().UTC())
	return nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getConfig(key)
}

func (s *Store) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listConfigs(namespace + ":"), nil
}

func (s *Store) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listConfigs(""), nil
}

func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteConfig(key)
}

// RunInTransaction runs fn with exclusive access to the store and rolls every
// change back when fn fails.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&txStore{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// txStore operates on the state while the parent store's lock is held.
type txStore struct {
	st  *state
	now func() time.Time
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (t *txStore) SelectRecords(ctx context.Context, rel *query.Relation) ([]model.Record, int, error) {
	return t.st.selectRecords(rel)
}

func (t *txStore) FindRecord(ctx context.Context, e *model.Entity, id any) (model.Record, error) {
	return t.st.find(e, id)
}

func (t *txStore) InsertRecord(ctx context.Context, e *model.Entity, r model.Record) (model.Record, error) {
	return t.st.insert(e, r)
}

func (t *txStore) UpdateRecord(ctx context.Context, e *model.Entity, id any, r model.Record) (model.Record, error) {
	return t.st.update(e, id, r)
}

func (t *txStore) DeleteRecords(ctx context.Context, e *model.Entity, ids []any) (int, error) {
	return t.st.delete(e, ids), nil
}

func (t *txStore) InsertAt(ctx context.Context, e *model.Entity, id any, position int) error {
	return t.st.insertAt(e, id, position)
}

func (t *txStore) DistinctValues(ctx context.Context, rel *query.Relation, field, prefix string) ([]any, error) {
	return t.st.distinct(rel, field, prefix)
}

func (t *txStore) SetConfig(ctx context.Context, c *model.Config) error {
	t.st.setConfig(c, t.now().UTC())
	return nil
}

func (t *txStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return t.st.getConfig(key)
}

func (t *txStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return t.st.listConfigs(namespace + ":"), nil
}

func (t *txStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return t.st.listConfigs(""), nil
}

func (t *txStore) DeleteConfig(ctx context.Context, key string) error {
	return t.st.deleteConfig(key)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store.
func (t *txStore) Close() error { return nil }

func (st *state) table(e *model.Entity) *table {
	t, ok := st.tables[e.TableName()]
	if !ok {
		t = &table{}
		st.tables[e.TableName()] = t
	}
	return t
}

// own copies the entity's own columns out of a stored row.
func own(e *model.Entity, r model.Record) model.Record {
	out := model.Record{e.PK(): r[e.PK()]}
	for _, a := range e.Attributes {
		out[a.Name] = r[a.Name]
	}
	return out
}

func (st *state) indexOf(e *model.Entity, id any) int {
	pk := e.PK()
	for i, r := range st.table(e).rows {
		if equalValues(r[pk], id) {
			return i
		}
	}
	return -1
}

func (st *state) find(e *model.Entity, id any) (model.Record, error) {
	i := st.indexOf(e, id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	return own(e, st.table(e).rows[i]), nil
}

func (st *state) insert(e *model.Entity, r model.Record) (model.Record, error) {
	t := st.table(e)
	pk := e.PKAttribute()
	row := model.Record{}
	for _, a := range e.Attributes {
		if v, ok := r[a.Name]; ok {
			row[a.Name] = v
		}
	}
	id := r[pk.Name]
	switch {
	case id != nil:
		if st.indexOf(e, id) >= 0 {
			return nil, &model.ValidationError{Errors: []model.FieldError{{Field: pk.Name, Message: "has already been taken"}}}
		}
		if n, ok := toFloat(id); ok && int64(n) > t.nextID {
			t.nextID = int64(n)
		}
	case pk.Type == model.AttrString:
		gen, err := idgen.Record()
		if err != nil {
			return nil, err
		}
		id = gen
	default:
		t.nextID++
		id = t.nextID
	}
	row[pk.Name] = id
	t.rows = append(t.rows, row)
	return own(e, row), nil
}

func (st *state) update(e *model.Entity, id any, r model.Record) (model.Record, error) {
	i := st.indexOf(e, id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	row := st.table(e).rows[i]
	for _, a := range e.Attributes {
		if a.Name == e.PK() {
			continue
		}
		if v, ok := r[a.Name]; ok {
			row[a.Name] = v
		}
	}
	return own(e, row), nil
}

func (st *state) delete(e *model.Entity, ids []any) int {
	t := st.table(e)
	pk := e.PK()
	kept := t.rows[:0]
	n := 0
	for _, r := range t.rows {
		hit := false
		for _, id := range ids {
			if equalValues(r[pk], id) {
				hit = true
				break
			}
		}
		if hit {
			n++
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return n
}

func (st *state) insertAt(e *model.Entity, id any, position int) error {
	if !e.Ordered() {
		return fmt.Errorf("%s has no position column: %w", e.Name, store.ErrUnsupported)
	}
	i := st.indexOf(e, id)
	if i < 0 {
		return sql.ErrNoRows
	}
	col := e.PositionColumn
	rows := st.table(e).rows
	old, hasOld := toFloat(rows[i][col])
	pos := float64(position)
	for j, r := range rows {
		if j == i {
			continue
		}
		p, ok := toFloat(r[col])
		if !ok {
			continue
		}
		switch {
		case !hasOld:
			if p >= pos {
				r[col] = int64(p) + 1
			}
		case pos < old:
			if p >= pos && p < old {
				r[col] = int64(p) + 1
			}
		case pos > old:
			if p > old && p <= pos {
				r[col] = int64(p) - 1
			}
		}
	}
	rows[i][col] = int64(position)
	return nil
}

// joined returns the row extended with the associated rows' attributes under
// their "assoc__attr" keys, for every association the relation references.
func (st *state) joined(e *model.Entity, assocs []string, r model.Record) model.Record {
	out := r.Clone()
	for _, name := range assocs {
		as, ok := e.Association(name)
		if !ok || as.Target == nil {
			continue
		}
		fk := r[as.ForeignKey]
		var target model.Record
		if fk != nil {
			if i := st.indexOf(as.Target, fk); i >= 0 {
				target = st.table(as.Target).rows[i]
			}
		}
		prefix := name + model.AssocSeparator
		out[prefix+as.Target.PK()] = target[as.Target.PK()]
		for _, a := range as.Target.Attributes {
			out[prefix+a.Name] = target[a.Name]
		}
	}
	return out
}

func (st *state) filter(rel *query.Relation) ([]model.Record, error) {
	if len(rel.Raw) > 0 {
		return nil, fmt.Errorf("raw predicate: %w", store.ErrUnsupported)
	}
	e := rel.Entity
	assocs := rel.Associations()
	var out []model.Record
	for _, r := range st.table(e).rows {
		j := st.joined(e, assocs, r)
		ok := true
		for _, c := range rel.Conditions {
			ref, err := e.Resolve(c.Ref())
			if err != nil {
				return nil, err
			}
			if !matchCondition(j[ref.Key()], c) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (st *state) selectRecords(rel *query.Relation) ([]model.Record, int, error) {
	rows, err := st.filter(rel)
	if err != nil {
		return nil, 0, err
	}
	e := rel.Entity

	orders := rel.Order
	if len(orders) == 0 && e.Ordered() {
		orders = []query.Order{{Field: e.PositionColumn}}
	}
	keys := make([]string, len(orders))
	for i, o := range orders {
		ref, err := e.Resolve(o.Ref())
		if err != nil {
			return nil, 0, err
		}
		keys[i] = ref.Key()
	}
	pk := e.PK()
	sort.SliceStable(rows, func(a, b int) bool {
		for i, o := range orders {
			cmp := orderValues(rows[a][keys[i]], rows[b][keys[i]])
			if o.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return orderValues(rows[a][pk], rows[b][pk]) < 0
	})

	total := len(rows)
	if p := rel.Page; p != nil && p.Size > 0 {
		start := p.Offset()
		if start > len(rows) {
			start = len(rows)
		}
		end := start + p.Size
		if end > len(rows) {
			end = len(rows)
		}
		rows = rows[start:end]
	}

	out := make([]model.Record, len(rows))
	for i, r := range rows {
		rec := own(e, r)
		for _, key := range rel.Select {
			if strings.Contains(key, model.AssocSeparator) {
				rec[key] = r[key]
			}
		}
		out[i] = rec
	}
	return out, total, nil
}

func (st *state) distinct(rel *query.Relation, field, prefix string) ([]any, error) {
	ref, err := rel.Entity.Resolve(field)
	if err != nil {
		return nil, err
	}
	r := rel.Unpaged().Including(ref.Key())
	rows, err := st.filter(r)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, row := range rows {
		v := row[ref.Key()]
		if v == nil {
			continue
		}
		if prefix != "" && !strings.HasPrefix(strings.ToLower(text(v)), strings.ToLower(prefix)) {
			continue
		}
		dup := false
		for _, seen := range out {
			if equalValues(seen, v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return orderValues(out[a], out[b]) < 0 })
	return out, nil
}

func (st *state) setConfig(c *model.Config, now time.Time) {
	if prev, ok := st.configs[c.Key]; ok {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := *c
	stored.Value = append([]byte(nil), c.Value...)
	st.configs[c.Key] = stored
}

func (st *state) getConfig(key string) (*model.Config, error) {
	c, ok := st.configs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (st *state) listConfigs(prefix string) []*model.Config {
	var out []*model.Config
	for k, c := range st.configs {
		if strings.HasPrefix(k, prefix) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (st *state) deleteConfig(key string) error {
	if _, ok := st.configs[key]; !ok {
		return sql.ErrNoRows
	}
	delete(st.configs, key)
	return nil
}
