package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
)

// baseAlias is the alias of the relation's own table. Joined associations are
// aliased "j_<association>".
const baseAlias = "r"

// selected describes one output column of a compiled SELECT.
type selected struct {
	key  string // record key: attribute name or "assoc__attr"
	attr model.Attribute
}

// compiler accumulates positional arguments while a statement is built.
type compiler struct {
	e    *model.Entity
	args []any
}

func newCompiler(e *model.Entity) *compiler {
	return &compiler{e: e}
}

func (c *compiler) nextArg(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func quote(s string) string { return pq.QuoteIdentifier(s) }

func assocAlias(name string) string { return quote("j_" + name) }

// column returns the qualified column expression for a resolved reference.
func column(ref model.FieldRef) string {
	if ref.Assoc == nil {
		return baseAlias + "." + quote(ref.Attr.ColumnName())
	}
	return assocAlias(ref.Assoc.Name) + "." + quote(ref.Attr.ColumnName())
}

// ownColumns lists the entity's primary key followed by its attributes.
func ownColumns(e *model.Entity) []selected {
	pk := e.PKAttribute()
	out := []selected{{key: pk.Name, attr: pk}}
	for _, a := range e.Attributes {
		if a.Name == pk.Name {
			continue
		}
		out = append(out, selected{key: a.Name, attr: a})
	}
	return out
}

// selectList renders the output columns: the entity's own columns, then
// every association column the relation refers to.
func (c *compiler) selectList(rel *query.Relation) (string, []selected, error) {
	cols := ownColumns(c.e)
	for _, key := range rel.Select {
		ref, err := c.e.Resolve(key)
		if err != nil {
			return "", nil, err
		}
		if ref.Assoc == nil {
			continue
		}
		cols = append(cols, selected{key: ref.Key(), attr: ref.Attr})
	}

	parts := make([]string, len(cols))
	for i, s := range cols {
		ref, err := c.e.Resolve(s.key)
		if err != nil {
			return "", nil, err
		}
		parts[i] = column(ref) + " AS " + quote(s.key)
	}
	return strings.Join(parts, ", "), cols, nil
}

// from renders the FROM clause with a LEFT JOIN per referenced association.
func (c *compiler) from(rel *query.Relation) string {
	var b strings.Builder
	b.WriteString(quote(c.e.TableName()) + " " + baseAlias)
	for _, name := range rel.Associations() {
		as, _ := c.e.Association(name)
		fk, _ := c.e.Attribute(as.ForeignKey)
		target := as.Target
		pk := target.PKAttribute()
		fmt.Fprintf(&b, " LEFT JOIN %s %s ON %s.%s = %s.%s",
			quote(target.TableName()), assocAlias(name),
			assocAlias(name), quote(pk.ColumnName()),
			baseAlias, quote(fk.ColumnName()))
	}
	return b.String()
}

// where renders the WHERE clause, or "" when the relation is unrestricted.
func (c *compiler) where(rel *query.Relation) (string, error) {
	var clauses []string
	for _, cond := range rel.Conditions {
		sql, err := c.condition(cond)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, sql)
	}
	for _, raw := range rel.Raw {
		clauses = append(clauses, "("+c.rawPredicate(raw)+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (c *compiler) condition(cond model.Condition) (string, error) {
	ref, err := c.e.Resolve(cond.Ref())
	if err != nil {
		return "", err
	}
	col := column(ref)
	switch cond.Op {
	case model.OpEq:
		if cond.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + c.nextArg(cond.Value), nil
	case model.OpNe:
		return col + " IS DISTINCT FROM " + c.nextArg(cond.Value), nil
	case model.OpGt:
		return col + " > " + c.nextArg(cond.Value), nil
	case model.OpLt:
		return col + " < " + c.nextArg(cond.Value), nil
	case model.OpGte:
		return col + " >= " + c.nextArg(cond.Value), nil
	case model.OpLte:
		return col + " <= " + c.nextArg(cond.Value), nil
	case model.OpMatches:
		return col + "::text ILIKE " + c.nextArg(cond.Value), nil
	case model.OpStarts:
		return col + "::text ILIKE " + c.nextArg(model.EscapeLike(fmt.Sprint(cond.Value))+"%"), nil
	case model.OpIn:
		list, _ := cond.Value.([]any)
		if len(list) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, len(list))
		for i, v := range list {
			placeholders[i] = c.nextArg(v)
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	}
	return "", fmt.Errorf("unsupported operator %q", cond.Op)
}

// rawPredicate rewrites "?" placeholders into numbered arguments.
func (c *compiler) rawPredicate(raw query.RawPredicate) string {
	var b strings.Builder
	n := 0
	for _, r := range raw.SQL {
		if r == '?' && n < len(raw.Args) {
			b.WriteString(c.nextArg(raw.Args[n]))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// orderBy renders the ORDER BY clause. Ordered entities default to their
// position column, and the primary key always breaks ties so pages are
// stable.
func (c *compiler) orderBy(rel *query.Relation) (string, error) {
	var terms []string
	pk := c.e.PK()
	hasPK := false
	orders := rel.Order
	if len(orders) == 0 && c.e.Ordered() {
		orders = []query.Order{{Field: c.e.PositionColumn}}
	}
	for _, o := range orders {
		ref, err := c.e.Resolve(o.Ref())
		if err != nil {
			return "", err
		}
		term := column(ref)
		if o.Desc {
			term += " DESC"
		} else {
			term += " ASC"
		}
		terms = append(terms, term)
		if ref.Assoc == nil && ref.Attr.Name == pk {
			hasPK = true
		}
	}
	if !hasPK {
		terms = append(terms, baseAlias+"."+quote(c.e.PKAttribute().ColumnName())+" ASC")
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func (c *compiler) limit(rel *query.Relation) string {
	if rel.Page == nil || rel.Page.Size <= 0 {
		return ""
	}
	sql := " LIMIT " + c.nextArg(rel.Page.Size)
	if off := rel.Page.Offset(); off > 0 {
		sql += " OFFSET " + c.nextArg(off)
	}
	return sql
}

// compileSelect builds the paged SELECT with a leading total_count column.
func compileSelect(rel *query.Relation) (string, []any, []selected, error) {
	c := newCompiler(rel.Entity)
	cols, fields, err := c.selectList(rel)
	if err != nil {
		return "", nil, nil, err
	}
	where, err := c.where(rel)
	if err != nil {
		return "", nil, nil, err
	}
	order, err := c.orderBy(rel)
	if err != nil {
		return "", nil, nil, err
	}
	sql := "SELECT COUNT(*) OVER() AS total_count, " + cols + " FROM " + c.from(rel) + where + order + c.limit(rel)
	return sql, c.args, fields, nil
}

// compileCount builds a COUNT over the unpaged relation.
func compileCount(rel *query.Relation) (string, []any, error) {
	c := newCompiler(rel.Entity)
	where, err := c.where(rel)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + c.from(rel) + where, c.args, nil
}

// compileDistinct builds a SELECT DISTINCT over one column of the relation.
func compileDistinct(rel *query.Relation, field, prefix string) (string, []any, model.Attribute, error) {
	ref, err := rel.Entity.Resolve(field)
	if err != nil {
		return "", nil, model.Attribute{}, err
	}
	r := rel.Unpaged().Including(ref.Key())
	r.Order = nil
	c := newCompiler(rel.Entity)
	where, err := c.where(r)
	if err != nil {
		return "", nil, model.Attribute{}, err
	}
	col := column(ref)
	clauses := col + " IS NOT NULL"
	if prefix != "" {
		clauses += " AND " + col + "::text ILIKE " + c.nextArg(model.EscapeLike(prefix)+"%")
	}
	if where == "" {
		where = " WHERE " + clauses
	} else {
		where += " AND " + clauses
	}
	sql := "SELECT DISTINCT " + col + " FROM " + c.from(r) + where + " ORDER BY " + col
	return sql, c.args, ref.Attr, nil
}
