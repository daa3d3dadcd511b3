package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/gridpanel/internal/client"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	authToken  string
	sessionID  string
	jsonOutput bool

	// caller dispatches grid endpoints over the selected transport.
	caller client.Caller
	// httpClient serves the HTTP-only routes (grid list, configs).
	httpClient *client.HTTPClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("GRIDPANEL_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("GRIDPANEL_SERVER"); s != "" {
		return s
	}
	return "localhost:9090"
}

var rootCmd = &cobra.Command{
	Use:   "gp <command>",
	Short: "Serve and drive data grids",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		httpClient = client.NewHTTPClient(httpURL, authToken, sessionID)
		switch transport {
		case "http":
			caller = httpClient
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr, authToken, sessionID)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			caller = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if caller != nil {
			caller.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("GRIDPANEL_AUTH_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", os.Getenv("GRIDPANEL_SESSION"), "grid session id (remembers last query parameters)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "layout", Title: "Layout:"},
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Data
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(multiEditCmd)
	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(moveRowsCmd)

	// Layout
	rootCmd.AddCommand(gridsCmd)
	rootCmd.AddCommand(columnCmd)

	// Events
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(hooksCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
