package model

// Capabilities gathers every per-operation flag a grid checks before doing
// work. Prohibit* flags gate data access; Enable* flags gate features.
type Capabilities struct {
	ProhibitRead   bool `json:"prohibit_read"`
	ProhibitCreate bool `json:"prohibit_create"`
	ProhibitUpdate bool `json:"prohibit_update"`
	ProhibitDelete bool `json:"prohibit_delete"`

	EnableColumnResize   bool `json:"enable_column_resize"`
	EnableColumnMove     bool `json:"enable_column_move"`
	EnableColumnHide     bool `json:"enable_column_hide"`
	EnableRowsReordering bool `json:"enable_rows_reordering"`
	EnablePagination     bool `json:"enable_pagination"`
	EnableEditInForm     bool `json:"enable_edit_in_form"`
	EnableExtendedSearch bool `json:"enable_extended_search"`
	EnableColumnFilters  bool `json:"enable_column_filters"`
	EnableContextMenu    bool `json:"enable_context_menu"`
	LoadInlineData       bool `json:"load_inline_data"`
}

// QuerySpec configures the base relation of a grid. At most one of Scope,
// Where and Conditions is expected; Scope wins, then Where.
type QuerySpec struct {
	Scope      string         `json:"scope,omitempty"`
	Where      string         `json:"where,omitempty"`
	Args       []any          `json:"args,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

// GridSettings is the resolved configuration of one grid component.
type GridSettings struct {
	Entity             string         `json:"entity"`
	Title              string         `json:"title,omitempty"`
	RowsPerPage        int            `json:"rows_per_page"`
	Mode               string         `json:"mode"`
	PersistentConfig   bool           `json:"persistent_config"`
	StrongDefaultAttrs map[string]any `json:"strong_default_attrs,omitempty"`
	Query              QuerySpec      `json:"query"`
	Columns            Columns        `json:"columns,omitempty"`
	OnDataChanged      []string       `json:"on_data_changed,omitempty"` // shell hooks

	Capabilities
}

// DefaultGridSettings returns the class-level defaults every grid starts from.
func DefaultGridSettings() GridSettings {
	return GridSettings{
		RowsPerPage:      25,
		Mode:             "normal",
		PersistentConfig: true,
		Capabilities: Capabilities{
			EnableColumnResize:   true,
			EnableColumnMove:     true,
			EnableColumnHide:     true,
			EnableRowsReordering: false,
			EnablePagination:     true,
			EnableEditInForm:     true,
			EnableExtendedSearch: true,
			EnableColumnFilters:  true,
			EnableContextMenu:    true,
			LoadInlineData:       true,
		},
	}
}
