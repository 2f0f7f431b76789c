package app

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/session"
)

// registerCommands attaches all subcommands to the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		a.reconcileCommand(),
		a.sessionsCommand(),
		a.lookupCommand(),
		a.catalogCommand(),
	)
}

// reconcileCommand runs one reconciliation over a records file.
func (a *App) reconcileCommand() *cobra.Command {
	var recordsPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile course records against the catalog",
		Long: `Reconcile runs one batch of course records through the matching
pipeline and commits the run to the store.

The records file is a JSON array of source records (id, name, rawCode,
description). The exit status is non-zero when the run fails; a failed
run still commits its audit session.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.Coursemap()
			if err != nil {
				return err
			}
			recs, err := records.LoadFile(recordsPath)
			if err != nil {
				return err
			}

			sess, runErr := engine.Reconcile(cmd.Context(), recs)
			if sess != nil {
				if err := a.printSession(sess); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&recordsPath, "records", "", "JSON file of source records (required)")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

// sessionsCommand lists committed sessions or shows one in detail.
func (a *App) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions [session-id]",
		Short: "List committed audit sessions or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.Coursemap()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				sess, err := engine.Session(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printSession(sess)
			}

			sessions, err := engine.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSessionList(sessions)
		},
	}
	return cmd
}

// lookupCommand reads a source record's latest committed mapping.
func (a *App) lookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <source-record-id>",
		Short: "Show a record's mapping from the most recent completed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.Coursemap()
			if err != nil {
				return err
			}
			mapping, err := engine.LatestMapping(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(mapping)
		},
	}
}

// catalogCommand validates the configured catalog.
func (a *App) catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the canonical catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and check it for duplicate codes",
		Long: `Validate loads the configured catalog and builds the matching index,
reporting duplicate normalized codes and entries whose codes normalize
to nothing.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			entries, err := catalogs.Load(a.config.CatalogPath)
			if err != nil {
				return err
			}
			idx, err := catalogs.NewIndex(entries, a.config.PrefixLength)
			if err != nil {
				return err
			}

			fmt.Printf("catalog ok: %d courses, %d categories\n", idx.Len(), len(idx.Categories()))
			return nil
		},
	})
	return cmd
}

// printSession renders one session in the configured output format.
func (a *App) printSession(sess *session.Session) error {
	if a.config.Format == "json" {
		return a.printJSON(sess)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "session\t%s\n", sess.ID)
	fmt.Fprintf(w, "started\t%s\n", sess.StartedAt)
	fmt.Fprintf(w, "completed\t%s\n", sess.CompletedAt)
	if !sess.Succeeded() {
		fmt.Fprintf(w, "failed\t%s\n", sess.Error)
	}
	fmt.Fprintf(w, "records\t%d\n", sess.Stats.Total)
	fmt.Fprintf(w, "exact matches\t%d\n", sess.Stats.ExactMatches)
	fmt.Fprintf(w, "prefix matches\t%d\n", sess.Stats.PrefixMatches)
	fmt.Fprintf(w, "semantic matches\t%d\n", sess.Stats.SemanticMatches)
	fmt.Fprintf(w, "flagged\t%d\n", sess.Stats.Flagged)
	fmt.Fprintf(w, "unmapped\t%d\n", sess.Stats.Unmapped)
	fmt.Fprintf(w, "rejections\t%d\n", sess.Stats.ValidationRejections)
	for _, warning := range sess.Warnings {
		fmt.Fprintf(w, "warning\t%s\n", warning)
	}
	return w.Flush()
}

// printSessionList renders the session list in the configured output format.
func (a *App) printSessionList(sessions []*session.Session) error {
	if a.config.Format == "json" {
		return a.printJSON(sessions)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCOMPLETED\tRECORDS\tMAPPED\tFLAGGED\tUNMAPPED\tSTATUS")
	for _, s := range sessions {
		status := "ok"
		if !s.Succeeded() {
			status = "failed"
		}
		mapped := s.Stats.ExactMatches + s.Stats.PrefixMatches + s.Stats.SemanticMatches
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.ID, s.CompletedAt, s.Stats.Total, mapped, s.Stats.Flagged, s.Stats.Unmapped, status)
	}
	return w.Flush()
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
