package journal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/statfetch/internal/fingerprint"
)

// FileName is the journal file inside each <dataset>/<mode> directory.
const FileName = "history.log"

// Path returns the journal location for a dataset and mode under root.
func Path(root, dataset string, mode Mode) string {
	return filepath.Join(root, dataset, string(mode), FileName)
}

// History is the last-write-wins index over one journal file plus its
// serialized appender. It is safe for concurrent use.
type History struct {
	mu   sync.Mutex
	path string
	mode Mode
	file *os.File

	index   map[fingerprint.Fingerprint]Event
	lastRun string
	skipped int

	// partial is set when the file ends without a newline.
	partial bool
}

// Stats summarises a History.
type Stats struct {
	Requests  int
	Succeeded int
	Failed    int
	Unknown   int
	Skipped   int
	LastRun   string
}

// Open reads the journal at path. A missing file yields an empty History;
// the file and its directories are created on the first Append. Lines that do
// not decode, and lines recorded for a different mode, are skipped and
// counted in Stats.Skipped.
func Open(path string, mode Mode) (*History, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	h := &History{
		path:  path,
		mode:  mode,
		index: make(map[fingerprint.Fingerprint]Event),
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()

	if err := h.read(f); err != nil {
		return nil, fmt.Errorf("read journal %s: %w", path, err)
	}
	return h, nil
}

func (h *History) read(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			h.partial = raw[len(raw)-1] != '\n'
			h.ingest(bytes.TrimSpace(raw))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *History) ingest(raw []byte) {
	if len(raw) == 0 {
		return
	}
	ev, err := Decode(raw)
	if err != nil {
		h.skipped++
		return
	}
	if ev.Mode != "" && ev.Mode != h.mode {
		h.skipped++
		return
	}
	ev.Mode = h.mode
	h.apply(ev)
}

func (h *History) apply(ev Event) {
	h.index[ev.Fingerprint] = ev
	if ev.RunID != "" {
		h.lastRun = ev.RunID
	}
}

// Mode returns the mode this History records.
func (h *History) Mode() Mode { return h.mode }

// Path returns the journal file location.
func (h *History) Path() string { return h.path }

// Append writes ev as one line and then updates the index, under one lock.
// An event with an empty Mode takes the History's mode.
func (h *History) Append(ev Event) error {
	if ev.Mode == "" {
		ev.Mode = h.mode
	}
	if ev.Mode != h.mode {
		return fmt.Errorf("append event: mode %q does not match journal mode %q", ev.Mode, h.mode)
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		h.file = f
	}

	if h.partial {
		// Terminate a line left half-written by an earlier crash so the
		// new event starts on its own line.
		if _, err := h.file.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		h.partial = false
	}
	if _, err := h.file.Write(data); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	h.apply(ev)
	return nil
}

// Lookup returns the latest event for fp.
func (h *History) Lookup(fp fingerprint.Fingerprint) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev, ok := h.index[fp]
	return ev, ok
}

// Completed reports whether the latest event for fp is a Success.
func (h *History) Completed(fp fingerprint.Fingerprint) bool {
	ev, ok := h.Lookup(fp)
	return ok && ev.Outcome.Kind == OutcomeSuccess
}

// Errors returns the latest event of every fingerprint whose latest event
// is an Error that falls inside scope.
func (h *History) Errors(scope Scope) map[fingerprint.Fingerprint]Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[fingerprint.Fingerprint]Event)
	for fp, ev := range h.index {
		if ev.Outcome.Kind != OutcomeError {
			continue
		}
		if !scope.contains(ev, h.lastRun) {
			continue
		}
		out[fp] = ev
	}
	return out
}

// Events returns the latest event per fingerprint, in no particular order.
func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.index))
	for _, ev := range h.index {
		out = append(out, ev)
	}
	return out
}

// LastRunID returns the run ID of the most recently recorded event that
// carries one.
func (h *History) LastRunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastRun
}

// Stats returns counts over the latest event per fingerprint.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{
		Requests: len(h.index),
		Skipped:  h.skipped,
		LastRun:  h.lastRun,
	}
	for _, ev := range h.index {
		switch ev.Outcome.Kind {
		case OutcomeSuccess:
			st.Succeeded++
		case OutcomeError:
			st.Failed++
		default:
			st.Unknown++
		}
	}
	return st
}

// Close releases the append handle. A closed History can still be read;
// a later Append reopens the file.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}
