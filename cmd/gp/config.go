package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	gridsync "github.com/alfredjeanlab/gridpanel/internal/sync"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage persisted component configs (saved layouts, settings overrides)",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Create or update a config, e.g. books:settings '{\"rows_per_page\":50}'",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := []byte(args[1])
		if !json.Valid(value) {
			return fmt.Errorf("value must be valid JSON")
		}
		c, err := httpClient.SetConfig(context.Background(), args[0], value)
		if err != nil {
			return err
		}
		return printJSON(c)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config by key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := httpClient.GetConfig(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(c)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list [component]",
	Short: "List configs, optionally of one component",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := ""
		if len(args) > 0 {
			namespace = args[0]
		}
		configs, err := httpClient.ListConfigs(context.Background(), namespace)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(configs)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tUPDATED\tBYTES")
		for _, c := range configs {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Key, c.UpdatedAt.Format("2006-01-02 15:04:05"), len(c.Value))
		}
		return tw.Flush()
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return httpClient.DeleteConfig(context.Background(), args[0])
	},
}

// The snapshot commands talk to the database directly, like serve.
var configExportCmd = &cobra.Command{
	Use:               "export",
	Short:             "Write every config of the database as JSONL to stdout",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStoreFromEnv()
		if err != nil {
			return err
		}
		defer s.Close()
		return gridsync.ExportJSONL(context.Background(), s, os.Stdout)
	},
}

var configImportCmd = &cobra.Command{
	Use:               "import <file>",
	Short:             "Load configs from a JSONL export (\"-\" reads stdin)",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStoreFromEnv()
		if err != nil {
			return err
		}
		defer s.Close()

		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		n, err := gridsync.ImportJSONL(context.Background(), s, in)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d configs\n", n)
		return nil
	},
}

var configRestoreCmd = &cobra.Command{
	Use:               "restore",
	Short:             "Load configs from the last snapshot in S3 or git",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		ctx := context.Background()
		s, cfg, err := openStoreFromEnv()
		if err != nil {
			return err
		}
		defer s.Close()

		src, err := snapshotSource(ctx, cfg, from)
		if err != nil {
			return err
		}
		n, err := gridsync.Restore(ctx, s, src)
		if err != nil {
			return err
		}
		fmt.Printf("restored %d configs from %s\n", n, from)
		return nil
	},
}

func snapshotSource(ctx context.Context, cfg *config.Config, from string) (gridsync.Source, error) {
	switch from {
	case "s3":
		if cfg.SyncS3Bucket == "" {
			return nil, fmt.Errorf("GRIDPANEL_SYNC_S3_BUCKET is not set")
		}
		return gridsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
	case "git":
		if cfg.SyncGitRepo == "" {
			return nil, fmt.Errorf("GRIDPANEL_SYNC_GIT_REPO is not set")
		}
		return gridsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch), nil
	}
	return nil, fmt.Errorf("unknown snapshot source %q (must be s3 or git)", from)
}

func init() {
	configRestoreCmd.Flags().String("from", "s3", "snapshot source (s3 or git)")

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)
	configCmd.AddCommand(configRestoreCmd)
}

