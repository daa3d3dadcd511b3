package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/gridpanel/internal/client"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/ui"
	"github.com/spf13/cobra"
)

var gridsCmd = &cobra.Command{
	Use:     "grids [grid]",
	Short:   "List the served grids, or show the configuration of one",
	GroupID: "layout",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 1 {
			w, err := client.WidgetConfig(ctx, caller, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(w)
			}
			fmt.Printf("%s %s\n", ui.RenderAccent(w.Title), ui.RenderMuted("("+w.Entity+")"))
			if w.Mode != "" {
				fmt.Printf("Mode:     %s\n", w.Mode)
			}
			if w.RowsPerPage > 0 {
				fmt.Printf("Per page: %d\n", w.RowsPerPage)
			}
			fmt.Printf("Actions:  %s\n", strings.Join(w.Bbar, ", "))
			fmt.Println()
			return printColumns(w.Columns)
		}

		grids, err := httpClient.ListGrids(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(grids)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "GRID\tENTITY")
		for _, g := range grids {
			fmt.Fprintf(tw, "%s\t%s\n", g.ID, g.Entity)
		}
		return tw.Flush()
	},
}

func printColumns(cols model.Columns) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tHEADER\tWIDTH\tFLAGS")
	for i, c := range cols {
		var flags []string
		if c.Hidden {
			flags = append(flags, "hidden")
		}
		if c.ReadOnly {
			flags = append(flags, "read-only")
		}
		if !c.IsSortable() {
			flags = append(flags, "unsortable")
		}
		width := "-"
		if c.Width > 0 {
			width = fmt.Sprint(c.Width)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, c.Name, c.Label(), width, strings.Join(flags, ","))
	}
	return tw.Flush()
}
