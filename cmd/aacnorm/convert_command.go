package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"aacnorm/internal/config"
	"aacnorm/internal/encoding"
	"aacnorm/internal/services"
)

// convertFlags are the per-run overrides shared by convert and watch.
type convertFlags struct {
	output        string
	bitrate       string
	channels      int
	sampleRate    int
	videoCodec    string
	subtitleCodec string
	force8Bit     bool
	crf           int
	preset        string
	title         string
	noHistory     bool
	jsonOutput    bool
	skipPreflight bool
}

func (f *convertFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "Output directory (default from config)")
	flags.StringVar(&f.bitrate, "bitrate", "", fmt.Sprintf("AAC bitrate per stream (%s)", strings.Join(config.Bitrates, ", ")))
	flags.IntVar(&f.channels, "channels", 0, "Output channel count")
	flags.IntVar(&f.sampleRate, "sample-rate", 0, "Output sample rate in Hz")
	flags.StringVar(&f.videoCodec, "video-codec", "", fmt.Sprintf("Video codec (%s)", strings.Join(config.VideoCodecs, ", ")))
	flags.StringVar(&f.subtitleCodec, "subtitle-codec", "", fmt.Sprintf("Subtitle codec (%s)", strings.Join(config.SubtitleCodecs, ", ")))
	flags.BoolVar(&f.force8Bit, "force-8bit", true, "Re-encode video to 8-bit H.264")
	flags.IntVar(&f.crf, "crf", 0, "libx264 CRF (16-24 recommended)")
	flags.StringVar(&f.preset, "preset", "", "libx264 preset (veryslow through faster recommended)")
	flags.StringVar(&f.title, "title", "", "Title tag written on every audio stream")
	flags.BoolVar(&f.noHistory, "no-history", false, "Do not record this run in the history database")
	flags.BoolVar(&f.jsonOutput, "json", false, "Emit one JSON event per line instead of progress text")
	flags.BoolVar(&f.skipPreflight, "skip-preflight", false, "Skip directory and dependency checks")
}

// apply returns a copy of base with the changed flags applied.
func (f *convertFlags) apply(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	cfg := *base
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Paths.OutputDir = f.output
	}
	if flags.Changed("bitrate") {
		cfg.Audio.Bitrate = f.bitrate
	}
	if flags.Changed("channels") {
		cfg.Audio.Channels = f.channels
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if flags.Changed("video-codec") {
		cfg.Video.Codec = f.videoCodec
	}
	if flags.Changed("subtitle-codec") {
		cfg.Subtitles.Codec = f.subtitleCodec
	}
	if flags.Changed("force-8bit") {
		cfg.Video.Force8Bit = f.force8Bit
	}
	if flags.Changed("crf") {
		cfg.Video.X264CRF = f.crf
	}
	if flags.Changed("preset") {
		cfg.Video.X264Preset = f.preset
	}
	if flags.Changed("title") {
		cfg.Audio.MetadataTitle = f.title
	}
	if err := cfg.Renormalize(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "apply flags", "", err)
	}
	return &cfg, nil
}

func (f *convertFlags) options() conversionOptions {
	return conversionOptions{
		jsonOutput:    f.jsonOutput,
		noHistory:     f.noHistory,
		skipPreflight: f.skipPreflight,
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert PATH...",
		Short: "Convert files or directories, normalizing every audio track to AAC",
		Long: "Convert each input to Matroska in the output directory. Directories contribute\n" +
			"their supported media files in name order. Press Ctrl-C to stop the queue;\n" +
			"send SIGUSR1 to skip the file currently being encoded.",
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
			files, err := encoding.ExpandInputs(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return services.Wrap(services.ErrNotFound, "convert", "expand inputs", strings.Join(args, ", "), errNoInputs)
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// A second interrupt falls through to the default handler.
			context.AfterFunc(runCtx, stop)

			opts := flags.options()
			opts.ctrl = encoding.NewController()
			stopSkip := forwardSkipSignal(opts.ctrl)
			defer stopSkip()

			summary, err := runConversion(runCtx, cmd, ctx, cfg, logger, files, opts)
			if err != nil {
				return err
			}
			if !flags.jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary, len(files)))
			}
			return summaryError(summary, len(files))
		},
	}
	flags.register(cmd)
	return cmd
}

// forwardSkipSignal maps SIGUSR1 to Controller.SkipCurrent until the
// returned function is called.
func forwardSkipSignal(ctrl *encoding.Controller) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				ctrl.SkipCurrent()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func renderSummary(summary encoding.Summary, total int) string {
	rows := make([][]string, 0, len(summary.Results))
	for i, r := range summary.Results {
		detail := filepath.Base(r.Output)
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			filepath.Base(r.Input),
			string(r.State),
			formatDuration(r.Elapsed),
			detail,
		})
	}
	footer := []string{
		"",
		fmt.Sprintf("%d of %d", len(summary.Results), total),
		fmt.Sprintf("%d ok, %d failed", summary.Count(encoding.StateSucceeded), summary.Count(encoding.StateFailed)),
		"",
		"",
	}
	return renderTable(
		[]string{"#", "File", "State", "Elapsed", "Output / Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		footer...,
	)
}
