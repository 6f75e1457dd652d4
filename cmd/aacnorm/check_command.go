package main

import (
	"github.com/spf13/cobra"

	"aacnorm/internal/deps"
	"aacnorm/internal/preflight"
)

var checkedEncoders = []string{"aac", "libx264", "libx265"}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check directories, binaries and encoders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ffmpeg := cfg.FFmpegBinary()

			var report checkReport
			report.add("Environment", environmentLines(preflight.RunAll(cmd.Context(), cfg)))
			report.add("Versions", versionLines(deps.CheckBinaries(cmd.Context(), deps.FFmpegRequirements(ffmpeg, cfg.FFprobeBinary()))))
			found, listErr := deps.CheckEncoders(cmd.Context(), ffmpeg, checkedEncoders...)
			report.add("Encoders", encoderLines(checkedEncoders, found, listErr))

			out := cmd.OutOrStdout()
			report.Render(out, shouldColorize(out))
			return report.Err()
		},
	}
}
