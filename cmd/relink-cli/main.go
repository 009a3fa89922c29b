// Command relink-cli is the operator command-line client for a relinkd
// server: create, inspect, update, delete, list, and bulk-verify records.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relink-labs/relink/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:          "relink-cli",
		Short:        "Manage records on a relink server",
		SilenceUsage: true,
	}

	var serverURL, token string
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("RELINK_SERVER", "http://localhost:8080"), "base URL of the relink server")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("RELINK_TOKEN"), "ownership token for update/delete")

	client := func() *apiClient { return newAPIClient(serverURL) }

	var ttl int64

	createCmd := &cobra.Command{
		Use:   "create <key> <url>",
		Short: "Create a record mapping key to url",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().create(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], ttl)
		},
	}
	createCmd.Flags().Int64Var(&ttl, "ttl", 0, "time-to-live in seconds (minimum 60, 0 = no expiry)")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().get(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update <key> <url>",
		Short: "Update a record's target URL (rotates the token)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("update requires --token (or RELINK_TOKEN)")
			}
			return client().update(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], token, ttl)
		},
	}
	updateCmd.Flags().Int64Var(&ttl, "ttl", 0, "new time-to-live in seconds (0 clears any expiry)")

	deleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("delete requires --token (or RELINK_TOKEN)")
			}
			return client().del(cmd.Context(), cmd.OutOrStdout(), args[0], token)
		},
	}

	var cursor string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List record keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client().list(cmd.Context(), cmd.OutOrStdout(), cursor, limit)
		},
	}
	listCmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor from a previous page")
	listCmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")

	verifyCmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Bulk-verify (key, value, token) triples from a JSON file",
		Long: `Verify reads a JSON array of {"key","value","token"} objects and asks the
server which of them still match its state. The result partitions the keys
into matched, unmatched, and missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().verify(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relink-cli %s\n", version.String())
		},
	}

	root.AddCommand(createCmd, getCmd, updateCmd, deleteCmd, listCmd, verifyCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
