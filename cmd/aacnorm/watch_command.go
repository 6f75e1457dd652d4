package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aacnorm/internal/encoding"
	"aacnorm/internal/logging"
	"aacnorm/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags
	var existing bool

	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Convert media files as they appear in directories",
		Long: "Watch directories for new media files and convert each batch once its\n" +
			"file sizes have stopped changing for watch.settle_seconds.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := flags.apply(cmd, base)
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			w, err := watch.New(args, watch.Options{
				Settle:          cfg.WatchSettle(),
				Exclude:         []string{cfg.Paths.OutputDir},
				Accept:          encoding.IsSupported,
				IncludeExisting: existing,
				Logger:          logger,
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			context.AfterFunc(runCtx, stop)

			out := cmd.OutOrStdout()
			if !flags.jsonOutput {
				fmt.Fprintf(out, "Watching %d director(ies); press Ctrl-C to stop.\n", len(args))
			}
			return w.Run(runCtx, func(batchCtx context.Context, files []string) {
				opts := flags.options()
				opts.ctrl = encoding.NewController()
				stopSkip := forwardSkipSignal(opts.ctrl)
				defer stopSkip()

				summary, err := runConversion(batchCtx, cmd, ctx, cfg, logger, files, opts)
				if err != nil {
					logging.WarnWithContext(logger, "watch batch not converted", "watch_batch",
						logging.Int(logging.FieldFileCount, len(files)),
						logging.Error(err),
					)
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return
				}
				if !flags.jsonOutput && summary.Completed {
					fmt.Fprintln(out, renderSummary(summary, len(files)))
				}
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&existing, "existing", false, "Also convert files already present when watching starts")
	return cmd
}
