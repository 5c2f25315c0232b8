// Package eventlog writes the Shared State Store's Alert stream to
// daily-rotated JSONL files, independent of the store's own JSON
// snapshot (which captures point-in-time state, not the alert history).
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"colony/pkg/proto"
)

// Writer appends Alerts to a daily-rotated JSONL file.
type Writer struct {
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates a Writer rooted at logDir, opening (or creating)
// today's log file immediately.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create log directory: %w", err)
	}

	w := &Writer{logDir: logDir}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("eventlog: initialize log file: %w", err)
	}
	return w, nil
}

// WriteAlert appends one Alert as a JSON line, rotating to a new day's
// file first if needed.
func (w *Writer) WriteAlert(a proto.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("eventlog: rotate log file: %w", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("eventlog: serialize alert: %w", err)
	}

	if _, err := w.currentFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("eventlog: write alert: %w", err)
	}
	return w.currentFile.Sync()
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().UTC().Format("2006-01-02")
	if w.currentFile != nil && w.currentDate == newDate {
		return nil
	}
	return w.rotate(newDate)
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("eventlog: close current log file: %w", err)
		}
	}

	path := filepath.Join(w.logDir, fmt.Sprintf("alerts-%s.jsonl", newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open log file %s: %w", path, err)
	}

	w.currentFile = file
	w.currentDate = newDate
	return nil
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

// CurrentLogFile returns the path of the currently active log file.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fmt.Sprintf("alerts-%s.jsonl", w.currentDate))
}

// ReadAlerts reads and parses every Alert from a single log file.
func ReadAlerts(logFilePath string) ([]proto.Alert, error) {
	data, err := os.ReadFile(logFilePath)
	if err != nil {
		return nil, fmt.Errorf("eventlog: read log file: %w", err)
	}

	var alerts []proto.Alert
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var a proto.Alert
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, fmt.Errorf("eventlog: parse alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// ListLogFiles returns every alert log file under logDir.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "alerts-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("eventlog: list log files: %w", err)
	}
	return files, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
