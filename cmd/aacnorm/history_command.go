package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"aacnorm/internal/config"
	"aacnorm/internal/history"
	"aacnorm/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recorded runs, or show the files of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0], jsonOutput)
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					shortID(r.ID),
					r.Status,
					formatLocal(r.StartedAt),
					strconv.Itoa(r.FileCount),
					strconv.Itoa(r.Succeeded),
					strconv.Itoa(r.Failed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Status", "Started", "Files", "OK", "Failed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs that started before a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age threshold, e.g. 720h")
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return openHistoryStore(cfg)
}

func openHistoryStore(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "history.enabled is false", nil)
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", cfg.HistoryPath(), err)
	}
	return store, nil
}

type runDetail struct {
	Run   *history.Run         `json:"run"`
	Files []history.FileRecord `json:"files"`
}

func showRun(cmd *cobra.Command, store *history.Store, id string, jsonOutput bool) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return services.Wrap(services.ErrNotFound, "history", "show", "no run matches "+id, nil)
	}
	files, err := store.RunFiles(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, runDetail{Run: run, Files: files})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Started:  %s\n", formatLocal(run.StartedAt))
	fmt.Fprintf(out, "Finished: %s\n", formatLocal(run.FinishedAt))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			strconv.Itoa(f.Index),
			filepath.Base(f.InputPath),
			f.State,
			formatDuration(f.Elapsed),
			f.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "File", "State", "Elapsed", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatLocal(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
