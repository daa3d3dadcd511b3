package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alfredjeanlab/gridpanel/internal/client"
	"github.com/alfredjeanlab/gridpanel/internal/grid"
	"github.com/alfredjeanlab/gridpanel/internal/ui"
	"github.com/spf13/cobra"
)

var dataCmd = &cobra.Command{
	Use:     "data <grid>",
	Short:   "Read a page of grid rows",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := dataRequest(cmd)
		if err != nil {
			return err
		}
		return printData(context.Background(), args[0], req)
	},
}

func init() {
	dataCmd.Flags().String("filter", "", `column filter as JSON, e.g. '[{"field":"pages","data":{"type":"numeric","comparison":"gt","value":300}}]'`)
	dataCmd.Flags().String("where", "", `extended search conditions as a JSON object, e.g. '{"title__like":"Du"}'`)
	dataCmd.Flags().String("sort", "", "column to sort by")
	dataCmd.Flags().String("dir", "ASC", "sort direction (ASC or DESC)")
	dataCmd.Flags().Int("start", 0, "offset of the first row")
	dataCmd.Flags().Int("limit", 0, "rows per page (0 = grid default)")
	dataCmd.Flags().Bool("last", false, "replay the last query of the session")
}

func dataRequest(cmd *cobra.Command) (*client.DataRequest, error) {
	req := &client.DataRequest{}
	req.Filter, _ = cmd.Flags().GetString("filter")
	req.Sort, _ = cmd.Flags().GetString("sort")
	req.Dir, _ = cmd.Flags().GetString("dir")
	req.Start, _ = cmd.Flags().GetInt("start")
	req.Limit, _ = cmd.Flags().GetInt("limit")
	req.WithLastParams, _ = cmd.Flags().GetBool("last")
	if where, _ := cmd.Flags().GetString("where"); where != "" {
		cond, err := parseObject(where)
		if err != nil {
			return nil, err
		}
		req.ExtraConditions = cond
	}
	return req, nil
}

// printData fetches a page and prints it under the grid's column headers.
func printData(ctx context.Context, gridID string, req *client.DataRequest) error {
	resp, err := client.GetData(ctx, caller, gridID, req)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	w, err := client.WidgetConfig(ctx, caller, gridID)
	if err != nil {
		return err
	}
	tbl := &ui.Table{Columns: w.Columns, Rows: resp.Data, MaxCell: 40}
	if err := tbl.Write(os.Stdout); err != nil {
		return err
	}
	switch total := resp.Total.(type) {
	case float64:
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d of %s rows", len(resp.Data), ui.FormatNumber(total))))
	default:
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d rows", len(resp.Data))))
	}
	return nil
}

var postCmd = &cobra.Command{
	Use:     "post <grid>",
	Short:   "Create and update rows in one batch",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		createArgs, _ := cmd.Flags().GetStringArray("create")
		updateArgs, _ := cmd.Flags().GetStringArray("update")
		if len(createArgs) == 0 && len(updateArgs) == 0 {
			return fmt.Errorf("nothing to post: use --create or --update")
		}
		created, err := parseObjects(createArgs)
		if err != nil {
			return err
		}
		updated, err := parseObjects(updateArgs)
		if err != nil {
			return err
		}

		resp, err := client.PostData(context.Background(), caller, args[0], created, updated)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(resp); err != nil {
				return err
			}
		} else {
			for id, row := range resp.UpdateNewRecords {
				fmt.Printf("created %s: %v\n", id, row)
			}
			for id, row := range resp.UpdateModRecords {
				fmt.Printf("updated %s: %v\n", id, row)
			}
		}
		return printFeedback(resp.Feedback)
	},
}

func init() {
	postCmd.Flags().StringArray("create", nil, "JSON object of a row to create (repeatable)")
	postCmd.Flags().StringArray("update", nil, "JSON object of a row to update, including its id (repeatable)")
}

var deleteCmd = &cobra.Command{
	Use:     "delete <grid> <id>...",
	Short:   "Delete rows",
	GroupID: "data",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.DeleteData(context.Background(), caller, args[0], parseIDs(args[1:]))
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(resp); err != nil {
				return err
			}
		}
		return printFeedback(resp.Feedback)
	},
}

var multiEditCmd = &cobra.Command{
	Use:     "multi-edit <grid> <id>...",
	Short:   "Apply the same values to several rows",
	GroupID: "data",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, _ := cmd.Flags().GetString("set")
		data, err := parseObject(set)
		if err != nil {
			return err
		}
		resp, err := client.MultiEdit(context.Background(), caller, args[0], parseIDs(args[1:]), data)
		if err != nil {
			return err
		}
		return printSetResult(resp)
	},
}

func init() {
	multiEditCmd.Flags().String("set", "{}", "JSON object of the values to apply")
}

var formCmd = &cobra.Command{
	Use:     "form <grid> [id]",
	Short:   "Submit the add form, or the edit form of a row",
	GroupID: "data",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, _ := cmd.Flags().GetString("set")
		data, err := parseObject(set)
		if err != nil {
			return err
		}
		var id any
		if len(args) == 2 {
			id = parseID(args[1])
		}
		resp, err := client.FormSubmit(context.Background(), caller, args[0], id, data)
		if err != nil {
			return err
		}
		return printSetResult(resp)
	},
}

func init() {
	formCmd.Flags().String("set", "{}", "JSON object of the form values")
}

func printSetResult(resp *grid.SetResultResponse) error {
	if jsonOutput {
		if err := printJSON(resp); err != nil {
			return err
		}
	} else if resp.Record != nil {
		data, _ := json.Marshal(resp.Record)
		fmt.Println(string(data))
	}
	return printFeedback(resp.Feedback)
}

var optionsCmd = &cobra.Command{
	Use:     "options <grid> <column> [query]",
	Short:   "List combobox choices of a column",
	GroupID: "data",
	Args:    cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 3 {
			query = args[2]
		}
		options, err := client.ComboboxOptions(context.Background(), caller, args[0], args[1], query)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(options)
		}
		for _, opt := range options {
			switch len(opt) {
			case 0:
			case 1:
				fmt.Println(opt[0])
			default:
				fmt.Printf("%v\t%v\n", opt[0], opt[1])
			}
		}
		return nil
	},
}

var moveRowsCmd = &cobra.Command{
	Use:     "move-rows <grid> <new-index> <id>...",
	Short:   "Move rows to a new position in an ordered grid",
	GroupID: "data",
	Args:    cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		newIndex, err := parseIndex("new-index", args[1])
		if err != nil {
			return err
		}
		return client.MoveRows(context.Background(), caller, args[0], parseIDs(args[2:]), newIndex)
	},
}
