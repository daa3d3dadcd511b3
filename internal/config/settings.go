package config

import (
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// Layer is one level of grid settings in their JSON form. Keys follow the
// JSON names of model.GridSettings.
type Layer map[string]any

// ResolveSettings applies layers over defaults in order. Nested objects are
// merged key by key, anything else (lists included) is replaced by the later
// layer.
func ResolveSettings(defaults model.GridSettings, layers ...Layer) (model.GridSettings, error) {
	base, err := toLayer(defaults)
	if err != nil {
		return model.GridSettings{}, err
	}
	for _, l := range layers {
		base = Merge(base, l)
	}
	data, err := json.Marshal(base)
	if err != nil {
		return model.GridSettings{}, fmt.Errorf("encode settings: %w", err)
	}
	var out model.GridSettings
	if err := json.Unmarshal(data, &out); err != nil {
		return model.GridSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

// ParseLayer decodes a persisted JSON object into a layer.
func ParseLayer(data []byte) (Layer, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var l Layer
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode settings layer: %w", err)
	}
	return l, nil
}

func toLayer(s model.GridSettings) (Layer, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	var l Layer
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	return l, nil
}

// Merge returns a new layer with over applied on top of base. Neither input
// is modified.
func Merge(base, over Layer) Layer {
	out := make(Layer, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if sub, ok := asLayer(v); ok {
			if prev, ok := asLayer(out[k]); ok {
				out[k] = map[string]any(Merge(prev, sub))
				continue
			}
		}
		out[k] = v
	}
	return out
}

func asLayer(v any) (Layer, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Layer:
		return m, true
	}
	return nil, false
}
