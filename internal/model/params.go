package model

// FilterEntry is one grid-header filter as sent by the client.
type FilterEntry struct {
	Field      string `json:"field"`
	Type       string `json:"type"`
	Comparison string `json:"comparison,omitempty"`
	Value      any    `json:"value"`
}

// QueryParams are the read parameters of one get_data request. They are
// remembered per component and session so a later request can replay them.
type QueryParams struct {
	Filter          []FilterEntry  `json:"filter,omitempty"`
	ExtraConditions map[string]any `json:"extra_conditions,omitempty"`
	Sort            string         `json:"sort,omitempty"`
	Dir             string         `json:"dir,omitempty"`
	Start           int            `json:"start,omitempty"`
	Limit           int            `json:"limit,omitempty"`
	WithLastParams  bool           `json:"with_last_params,omitempty"`
}
