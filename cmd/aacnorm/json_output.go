package main

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"aacnorm/internal/encoding"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonEventSink writes one compact JSON object per runner event.
type jsonEventSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONEventSink(w io.Writer) *jsonEventSink {
	return &jsonEventSink{enc: json.NewEncoder(w)}
}

type jsonEvent struct {
	Seq       uint64 `json:"seq"`
	Type      string `json:"type"`
	Time      string `json:"time"`
	RunID     string `json:"run_id,omitempty"`
	FileIndex int    `json:"file_index,omitempty"`
	FileCount int    `json:"file_count,omitempty"`
	File      string `json:"file,omitempty"`
	State     string `json:"state,omitempty"`
	Percent   *int   `json:"percent,omitempty"`
	ETA       string `json:"eta,omitempty"`
	Overall   *int   `json:"overall,omitempty"`
	Level     string `json:"level,omitempty"`
	Message   string `json:"message,omitempty"`
	Detail    string `json:"detail,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
}

func (s *jsonEventSink) Emit(e encoding.Event) {
	out := jsonEvent{
		Seq:       e.Seq,
		Type:      string(e.Type),
		Time:      e.Time.UTC().Format("2006-01-02T15:04:05.000Z"),
		RunID:     e.RunID,
		FileIndex: e.FileIndex,
		FileCount: e.FileCount,
		File:      e.FileName,
		State:     string(e.State),
		Level:     e.Level,
		Message:   e.Message,
		Detail:    e.Detail,
		ElapsedMS: e.Elapsed.Milliseconds(),
	}
	if e.Type == encoding.EventProgress {
		pct, overall := e.Percent, e.Overall
		out.Percent = &pct
		out.Overall = &overall
		out.ETA = e.ETA
	}
	if e.Type == encoding.EventComplete || e.Type == encoding.EventFileFinished {
		overall := e.Overall
		out.Overall = &overall
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(out)
}
