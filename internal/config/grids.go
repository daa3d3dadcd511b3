package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/gridpanel/internal/filter"
	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// Definitions are the entities and grid instances declared in a grids file.
type Definitions struct {
	Registry *model.Registry
	Grids    map[string]GridDef
}

// GridDef is one grid instance: its entity and the instance settings layer
// applied over the class defaults.
type GridDef struct {
	ID       string
	Entity   *model.Entity
	Instance Layer
}

type fileDefs struct {
	Entities map[string]fileEntity    `toml:"entities"`
	Grids    map[string]map[string]any `toml:"grids"`
}

type fileEntity struct {
	Table          string                    `toml:"table"`
	PrimaryKey     string                    `toml:"primary_key"`
	PrimaryKeyType string                    `toml:"primary_key_type"`
	PositionColumn string                    `toml:"position_column"`
	Attributes     []model.Attribute         `toml:"attributes"`
	Associations   []model.Association       `toml:"associations"`
	Scopes         map[string]map[string]any `toml:"scopes"`
}

// LoadDefinitions reads and validates a grids file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defs, err := ParseDefinitions(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions decodes grid definitions in TOML form.
func ParseDefinitions(data string) (*Definitions, error) {
	var f fileDefs
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}

	names := make([]string, 0, len(f.Entities))
	for name := range f.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	entities := make([]*model.Entity, 0, len(names))
	for _, name := range names {
		fe := f.Entities[name]
		e := &model.Entity{
			Name:           name,
			Table:          fe.Table,
			PrimaryKey:     fe.PrimaryKey,
			PrimaryKeyType: model.AttrType(fe.PrimaryKeyType),
			Attributes:     fe.Attributes,
			Associations:   fe.Associations,
			PositionColumn: fe.PositionColumn,
		}
		if len(fe.Scopes) > 0 {
			e.Scopes = make(map[string]model.Conditions, len(fe.Scopes))
			for scope, raw := range fe.Scopes {
				conds, err := filter.NormalizeExtraConditions(raw)
				if err != nil {
					return nil, fmt.Errorf("entity %s: scope %q: %w", name, scope, err)
				}
				e.Scopes[scope] = conds
			}
		}
		entities = append(entities, e)
	}
	reg, err := model.NewRegistry(entities...)
	if err != nil {
		return nil, err
	}

	defs := &Definitions{Registry: reg, Grids: make(map[string]GridDef, len(f.Grids))}
	for id, raw := range f.Grids {
		name, _ := raw["entity"].(string)
		if name == "" {
			return nil, fmt.Errorf("grid %s: entity is required", id)
		}
		e, ok := reg.Get(name)
		if !ok {
			return nil, fmt.Errorf("grid %s: unknown entity %q", id, name)
		}
		def := GridDef{ID: id, Entity: e, Instance: Layer(raw)}
		if _, err := ResolveSettings(model.DefaultGridSettings(), def.Instance); err != nil {
			return nil, fmt.Errorf("grid %s: %w", id, err)
		}
		defs.Grids[id] = def
	}
	return defs, nil
}

// GridIDs returns the declared grid ids, sorted.
func (d *Definitions) GridIDs() []string {
	ids := make([]string, 0, len(d.Grids))
	for id := range d.Grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
