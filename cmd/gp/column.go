package main

import (
	"context"

	"github.com/alfredjeanlab/gridpanel/internal/client"
	"github.com/spf13/cobra"
)

var columnCmd = &cobra.Command{
	Use:     "column",
	Short:   "Change the saved column layout of a grid",
	GroupID: "layout",
}

var columnResizeCmd = &cobra.Command{
	Use:   "resize <grid> <index> <width>",
	Short: "Set the width of a column",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex("index", args[1])
		if err != nil {
			return err
		}
		width, err := parseIndex("width", args[2])
		if err != nil {
			return err
		}
		return client.ResizeColumn(context.Background(), caller, args[0], index, width)
	},
}

var columnMoveCmd = &cobra.Command{
	Use:   "move <grid> <old-index> <new-index>",
	Short: "Move a column to a new position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseIndex("old-index", args[1])
		if err != nil {
			return err
		}
		to, err := parseIndex("new-index", args[2])
		if err != nil {
			return err
		}
		return client.MoveColumn(context.Background(), caller, args[0], from, to)
	},
}

var columnHideCmd = &cobra.Command{
	Use:   "hide <grid> <index>",
	Short: "Hide a column (or show it again with --show)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex("index", args[1])
		if err != nil {
			return err
		}
		show, _ := cmd.Flags().GetBool("show")
		return client.HideColumn(context.Background(), caller, args[0], index, !show)
	},
}

var columnResetCmd = &cobra.Command{
	Use:   "reset <grid>",
	Short: "Drop the saved layout and return to the configured columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.ResetColumns(context.Background(), caller, args[0])
	},
}

var columnListCmd = &cobra.Command{
	Use:   "list <grid>",
	Short: "Show the current column layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := client.WidgetConfig(context.Background(), caller, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(w.Columns)
		}
		return printColumns(w.Columns)
	},
}

func init() {
	columnHideCmd.Flags().Bool("show", false, "show the column instead of hiding it")

	columnCmd.AddCommand(columnListCmd)
	columnCmd.AddCommand(columnResizeCmd)
	columnCmd.AddCommand(columnMoveCmd)
	columnCmd.AddCommand(columnHideCmd)
	columnCmd.AddCommand(columnResetCmd)
}
