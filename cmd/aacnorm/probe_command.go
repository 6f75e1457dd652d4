package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aacnorm/internal/encoding"
	"aacnorm/internal/logging"
	"aacnorm/internal/media/ffprobe"
	"aacnorm/internal/services"
)

type probeReport struct {
	Path         string                `json:"path"`
	Format       string                `json:"format"`
	Duration     float64               `json:"duration_seconds"`
	SizeBytes    int64                 `json:"size_bytes"`
	Streams      []ffprobe.Stream      `json:"streams"`
	AudioStreams []ffprobe.AudioStream `json:"audio_streams"`
	Video        ffprobe.VideoStream   `json:"video"`
	HighBitDepth bool                  `json:"high_bit_depth"`
	VideoCodec   string                `json:"planned_video_codec"`
	Command      string                `json:"command"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Show streams and the planned conversion for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			result, err := ffprobe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "probe", "inspect", path, err)
			}

			inspector := ffprobe.NewInspector(cfg.FFprobeBinary(), logging.NewNop())
			audio, _ := inspector.AudioStreams(cmd.Context(), path)
			video, _ := inspector.VideoStream(cmd.Context(), path)
			settings := encoding.SettingsFromConfig(cfg)
			plan := encoding.PlanVideo(settings, video)
			output := filepath.Join(settings.OutputDir, filepath.Base(path))

			report := probeReport{
				Path:         path,
				Format:       result.Format.FormatName,
				Duration:     result.DurationSeconds(),
				SizeBytes:    result.SizeBytes(),
				Streams:      result.Streams,
				AudioStreams: audio,
				Video:        video,
				HighBitDepth: plan.HighBitDepth,
				VideoCodec:   string(plan.Codec),
				Command:      encoding.CommandLine(cfg.FFmpegBinary(), encoding.BuildArgs(path, output, settings, audio, video)),
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			renderProbe(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderProbe(cmd *cobra.Command, r probeReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:      %s\n", r.Path)
	fmt.Fprintf(out, "Container: %s\n", valueOr(r.Format, "unknown"))
	if r.Duration > 0 {
		fmt.Fprintf(out, "Duration:  %s\n", formatDuration(time.Duration(r.Duration*float64(time.Second))))
	} else {
		fmt.Fprintln(out, "Duration:  unknown")
	}
	if r.SizeBytes > 0 {
		fmt.Fprintf(out, "Size:      %s\n", humanize.IBytes(uint64(r.SizeBytes)))
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(r.Streams))
	for _, s := range r.Streams {
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			s.CodecType,
			valueOr(s.CodecName, "-"),
			streamDetail(s),
			valueOr(s.Tags.Language, "-"),
			valueOr(s.Tags.Title, ""),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Type", "Codec", "Detail", "Lang", "Title"},
		rows,
		[]columnAlignment{alignRight},
	))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Audio streams to convert: %d\n", len(r.AudioStreams))
	fmt.Fprintf(out, "High bit-depth video:     %s\n", yesNo(r.HighBitDepth))
	fmt.Fprintf(out, "Planned video codec:      %s\n", r.VideoCodec)
	fmt.Fprintf(out, "Command:\n  %s\n", r.Command)
}

func streamDetail(s ffprobe.Stream) string {
	var parts []string
	switch s.CodecType {
	case "video":
		if s.Width > 0 && s.Height > 0 {
			parts = append(parts, fmt.Sprintf("%dx%d", s.Width, s.Height))
		}
		if s.PixFmt != "" {
			parts = append(parts, s.PixFmt)
		}
		if s.Profile != "" {
			parts = append(parts, s.Profile)
		}
	case "audio":
		if s.Channels > 0 {
			parts = append(parts, fmt.Sprintf("%dch", s.Channels))
		}
		if s.SampleRate != "" {
			parts = append(parts, s.SampleRate+" Hz")
		}
		if bps := encoding.ParseBitrate(s.BitRate); bps > 0 {
			parts = append(parts, fmt.Sprintf("%dk", bps/1000))
		}
	}
	return strings.Join(parts, " ")
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
