package model

import (
	"encoding/json"
	"time"
)

// Config is a key-value configuration record stored as JSONB.
// Keys use the format "{component}:{name}" (e.g. "books:columns", "books:settings").
type Config struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ConfigKey builds the persistent config key for a component setting.
func ConfigKey(component, name string) string {
	return component + ":" + name
}
