package main

import (
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tcl-live/backend/internal/grandlyon"
	"github.com/tcl-live/backend/internal/gtfsstatic"
	"github.com/tcl-live/backend/internal/ingest"
	"github.com/tcl-live/backend/internal/logging"
)

// newIngester wires the configured feed and store. gtfsSource overrides
// GTFS_URL for the gtfs job.
func newIngester(e *env, gtfsSource string) *ingest.Ingester {
	client := grandlyon.NewClient(grandlyon.Options{
		Token:                  e.cfg.Feed.Token,
		Timeout:                e.cfg.Feed.Timeout,
		MaxRetries:             e.cfg.Feed.MaxRetries,
		VehicleMonitoringURL:   e.cfg.Feed.VehicleMonitoringURL,
		EstimatedTimetablesURL: e.cfg.Feed.EstimatedTimetablesURL,
		AlertsURL:              e.cfg.Feed.AlertsURL,
		WFSURL:                 e.cfg.Feed.WFSURL,
		Logger:                 e.logger,
	})
	if gtfsSource == "" {
		gtfsSource = e.cfg.GTFS.URL
	}
	return ingest.NewIngester(ingest.Options{
		Feed:         client,
		Store:        e.db,
		IconsCSVPath: e.cfg.Ingest.IconsCSVPath,
		Schedule: &gtfsstatic.Loader{
			Client: &http.Client{Timeout: e.cfg.GTFS.Timeout},
			Source: gtfsSource,
			Logger: e.logger,
		},
		Logger: e.logger,
	})
}

var runCmd = &cobra.Command{
	Use:   "run <job>...",
	Short: "Run ingestion jobs once",
	Long: `Run one or more ingestion jobs once and print a summary.
Groups "static", "realtime" and "lines" expand to their jobs. See "ingestctl jobs".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer logging.SafeClose(e, e.logger, "close database")

		results, runErr := newIngester(e, "").RunJobs(cmd.Context(), args...)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tWRITTEN\tSKIPPED\tNOTE")
		for _, r := range results {
			note := ""
			if r.Busy {
				note = "busy, skipped"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Job, r.Written, r.Skipped, note)
		}
		w.Flush()
		return runErr
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List job and group names accepted by run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// job names do not depend on configuration
		names := ingest.NewIngester(ingest.Options{Logger: logging.Discard()}).JobNames()
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete ingestion run records older than the retention",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer logging.SafeClose(e, e.logger, "close database")

		retention, _ := cmd.Flags().GetDuration("older-than")
		if retention <= 0 {
			retention = e.cfg.Ingest.RunRetention
		}
		return newIngester(e, "").PruneRuns(cmd.Context(), retention)
	},
}

func init() {
	pruneCmd.Flags().Duration("older-than", 0, "retention window (default RUN_RETENTION)")

	rootCmd.AddCommand(runCmd, jobsCmd, pruneCmd)
}
