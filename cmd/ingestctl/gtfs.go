package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/logging"
)

var importGTFSCmd = &cobra.Command{
	Use:   "import-gtfs [path-or-url]",
	Short: "Replace the static GTFS schedule tables",
	Long: `Download (or read) a GTFS zip and replace the gtfs_* tables in one transaction.
Without an argument the configured GTFS_URL is used. The import is recorded
as a "gtfs" run, so the poller treats the schedule as fresh afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer logging.SafeClose(e, e.logger, "close database")

		source := ""
		if len(args) == 1 {
			source = args[0]
		}
		if source == "" && e.cfg.GTFS.URL == "" {
			return fmt.Errorf("no GTFS source: pass a path or URL, or set GTFS_URL")
		}

		res, err := newIngester(e, source).IngestGTFS(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d schedule rows\n", res.Written)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:       "schema [sqlite|postgres]",
	Short:     "Print the store schema for a dialect",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{db.DialectSQLite, db.DialectPostgres},
	RunE: func(cmd *cobra.Command, args []string) error {
		dialect := db.DialectSQLite
		if len(args) == 1 {
			dialect = args[0]
		}
		if dialect != db.DialectSQLite && dialect != db.DialectPostgres {
			return fmt.Errorf("unknown dialect %q", dialect)
		}
		fmt.Fprint(cmd.OutOrStdout(), db.SchemaSQL(dialect))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importGTFSCmd, schemaCmd)
}
