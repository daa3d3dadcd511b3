package grid

import (
	"context"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// Action is a toolbar or context menu entry.
type Action struct {
	Text     string `json:"text"`
	Disabled bool   `json:"disabled"`
	Checked  bool   `json:"checked,omitempty"`
}

// Separator separates action groups in bars and menus.
const Separator = "-"

// WidgetConfig is what a client needs to render the grid.
type WidgetConfig struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Entity      string            `json:"entity"`
	Mode        string            `json:"mode"`
	Columns     model.Columns     `json:"columns"`
	Actions     map[string]Action `json:"actions"`
	Bbar        []string          `json:"bbar"`
	ContextMenu []string          `json:"context_menu,omitempty"`
	RowsPerPage int               `json:"rows_per_page,omitempty"`
	InlineData  any               `json:"inline_data,omitempty"`

	model.Capabilities
}

func (c *call) widgetConfig(ctx context.Context) (any, error) {
	st := c.settings
	cols, err := c.columns(ctx)
	if err != nil {
		return nil, err
	}
	title := st.Title
	if title == "" {
		title = model.Humanize(c.id)
	}
	w := &WidgetConfig{
		ID:           c.id,
		Title:        title,
		Entity:       c.entity.Name,
		Mode:         st.Mode,
		Columns:      cols.Visible(),
		Actions:      actions(st.Capabilities),
		Bbar:         bbar(st.Capabilities),
		Capabilities: st.Capabilities,
	}
	if st.EnableContextMenu {
		w.ContextMenu = contextMenu(st.Capabilities)
	}
	if st.EnablePagination {
		w.RowsPerPage = st.RowsPerPage
	}
	if st.LoadInlineData {
		data, err := c.getData(ctx, Params{})
		if err != nil {
			return nil, err
		}
		w.InlineData = data
	}
	return w, nil
}

func actions(caps model.Capabilities) map[string]Action {
	return map[string]Action{
		"add":          {Text: "Add", Disabled: caps.ProhibitCreate},
		"edit":         {Text: "Edit", Disabled: true},
		"del":          {Text: "Delete", Disabled: true},
		"apply":        {Text: "Apply", Disabled: caps.ProhibitUpdate && caps.ProhibitCreate},
		"add_in_form":  {Text: "Add in form", Disabled: !caps.EnableEditInForm},
		"edit_in_form": {Text: "Edit in form", Disabled: true},
		"search":       {Text: "Search", Disabled: !caps.EnableExtendedSearch, Checked: true},
	}
}

func bbar(caps model.Capabilities) []string {
	out := []string{"add", "edit", "apply", "del"}
	if caps.EnableEditInForm {
		out = append(out, Separator, "add_in_form", "edit_in_form")
	}
	if caps.EnableExtendedSearch {
		out = append(out, Separator, "search")
	}
	return out
}

func contextMenu(caps model.Capabilities) []string {
	out := []string{"edit", "del"}
	if caps.EnableEditInForm {
		out = append(out, Separator, "edit_in_form")
	}
	return out
}
