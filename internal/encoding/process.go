package encoding

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// maxLineBytes bounds buffered output when a writer never sees a newline.
const maxLineBytes = 64 << 10

// diagnosticTailLines is how much stderr is retained for failure details.
const diagnosticTailLines = 20

// lineWriter splits a byte stream into lines and hands each to emit. It is
// driven by the single goroutine exec.Cmd uses to copy a pipe.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:i]), "\r")
		w.buf = w.buf[i+1:]
		w.emit(line)
	}
	if len(w.buf) > maxLineBytes {
		w.emit(string(w.buf))
		w.buf = nil
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(strings.TrimRight(string(w.buf), "\r"))
		w.buf = nil
	}
}

// diagnostics consumes ffmpeg's stderr. Non-empty lines are forwarded and the
// last few are kept for error reporting.
type diagnostics struct {
	*lineWriter
	mu      sync.Mutex
	tail    []string
	limit   int
	forward func(string)
}

func newDiagnostics(limit int, forward func(string)) *diagnostics {
	d := &diagnostics{limit: limit, forward: forward}
	d.lineWriter = newLineWriter(d.record)
	return d
}

func (d *diagnostics) record(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	d.mu.Lock()
	d.tail = append(d.tail, line)
	if len(d.tail) > d.limit {
		d.tail = d.tail[len(d.tail)-d.limit:]
	}
	d.mu.Unlock()
	if d.forward != nil {
		d.forward(line)
	}
}

// Tail returns the retained stderr lines joined by newlines.
func (d *diagnostics) Tail() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.tail, "\n")
}

// configureProcess puts the encoder in its own process group so termination
// reaches any children and terminal signals do not.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		return nil
	}
}

// exitCode extracts the process exit status, or -1 when it did not exit
// normally.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func removePartial(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
