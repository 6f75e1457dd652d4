package encoding

import (
	"sync"
	"time"

	"aacnorm/internal/media/ffprobe"
)

// EventType classifies runner events.
type EventType string

const (
	EventFileStarted  EventType = "file_started"
	EventProgress     EventType = "progress"
	EventLog          EventType = "log"
	EventError        EventType = "error"
	EventFileFinished EventType = "file_finished"
	EventComplete     EventType = "complete"
	EventQueueFailed  EventType = "queue_failed"
)

// Log levels carried by EventLog.
const (
	LevelInfo   = "info"
	LevelWarn   = "warn"
	LevelFFmpeg = "ffmpeg"
)

// Event is one unit of runner output. Fields irrelevant to Type are zero.
type Event struct {
	Seq  uint64
	Type EventType
	Time time.Time

	RunID     string
	FileIndex int // 1-based
	FileCount int
	FileName  string
	Input     string
	Output    string
	State     FileState

	// Percent is the per-file percentage, -1 while indeterminate.
	Percent  int
	Fraction float64
	ETA      string
	Source   Signal
	Overall  int

	// Level classifies log events: "info", "warn" or "ffmpeg" for encoder
	// diagnostics.
	Level   string
	Message string
	Detail  string
	Elapsed time.Duration
	Streams []ffprobe.AudioStream
}

// Sink receives runner events. Emit may be called concurrently.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// MultiSink fans every event out to each non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ChannelSink forwards events to ch, blocking when it is full.
func ChannelSink(ch chan<- Event) Sink {
	return SinkFunc(func(e Event) { ch <- e })
}

// Recorder is a Sink that keeps every event, for tests and summaries.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters the recorded events.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
