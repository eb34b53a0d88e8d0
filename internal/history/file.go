package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-tracker/internal/action"
	"github.com/kozaktomas/face-tracker/internal/identity"
)

// record is one line of a session history file. Type is "session", "event",
// "status" or "summary".
type record struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Target    string        `json:"target,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Event     *action.Event `json:"event,omitempty"`
	Message   string        `json:"message,omitempty"`

	// Summary fields.
	EndedAt time.Time           `json:"ended_at,omitempty"`
	Total   int                 `json:"total,omitempty"`
	ByKind  map[action.Kind]int `json:"by_kind,omitempty"`
}

// FileRecorder appends session records to a JSONL file,
// <target>_history_<millis>.jsonl, one session per file.
type FileRecorder struct {
	file      *os.File
	path      string
	sessionID string
	startedAt time.Time

	total     int
	byKind    map[action.Kind]int
	finalized bool
}

// NewFileRecorder opens a session history file in dir, creating the
// directory when missing.
func NewFileRecorder(dir, target string, startedAt time.Time) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	name := strings.ReplaceAll(identity.NormalizeName(target), " ", "_")
	path := filepath.Join(dir, fmt.Sprintf("%s_history_%d.jsonl", name, startedAt.UnixMilli()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create history file: %w", err)
	}

	r := &FileRecorder{
		file:      file,
		path:      path,
		sessionID: uuid.NewString(),
		startedAt: startedAt,
		byKind:    make(map[action.Kind]int),
	}
	if err := r.write(record{
		Type:      "session",
		SessionID: r.sessionID,
		Target:    target,
		StartedAt: startedAt,
	}); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// Path returns the history file path.
func (r *FileRecorder) Path() string {
	return r.path
}

// SessionID returns the generated session id.
func (r *FileRecorder) SessionID() string {
	return r.sessionID
}

// Record appends one event record.
func (r *FileRecorder) Record(event action.Event) error {
	if r.finalized {
		return fmt.Errorf("history file %s already finalized", r.path)
	}
	if err := r.write(record{Type: "event", Event: &event}); err != nil {
		return err
	}
	r.total++
	r.byKind[event.Kind]++
	return nil
}

// Status appends a status note.
func (r *FileRecorder) Status(message string) error {
	if r.finalized {
		return fmt.Errorf("history file %s already finalized", r.path)
	}
	return r.write(record{Type: "status", Message: message})
}

// Finalize writes the summary record and closes the file. Subsequent calls
// are no-ops so deferred cleanup on abnormal exits stays safe.
func (r *FileRecorder) Finalize() error {
	if r.finalized {
		return nil
	}
	r.finalized = true

	if err := r.write(record{
		Type:    "summary",
		EndedAt: time.Now(),
		Total:   r.total,
		ByKind:  r.byKind,
	}); err != nil {
		r.file.Close()
		return err
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close history file: %w", err)
	}
	return nil
}

func (r *FileRecorder) write(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}
	return nil
}

// SessionLog is a history file read back from disk.
type SessionLog struct {
	SessionID string
	Target    string
	StartedAt time.Time
	Events    []action.Event
	Statuses  []string
	Total     int
	ByKind    map[action.Kind]int
	Finalized bool
}

// ReadFile loads a session history file.
func ReadFile(path string) (*SessionLog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	log := &SessionLog{ByKind: make(map[action.Kind]int)}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("history file %s line %d: %w", path, line, err)
		}
		switch rec.Type {
		case "session":
			log.SessionID = rec.SessionID
			log.Target = rec.Target
			log.StartedAt = rec.StartedAt
		case "event":
			if rec.Event != nil {
				log.Events = append(log.Events, *rec.Event)
			}
		case "status":
			log.Statuses = append(log.Statuses, rec.Message)
		case "summary":
			log.Total = rec.Total
			if rec.ByKind != nil {
				log.ByKind = rec.ByKind
			}
			log.Finalized = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return log, nil
}

// Summary formats per-kind counts for terminal output.
func (l *SessionLog) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s target=%s events=%d\n", l.SessionID, l.Target, len(l.Events))
	for _, kind := range action.Kinds {
		if n := l.ByKind[kind]; n > 0 {
			fmt.Fprintf(&b, "  %-12s %d\n", kind, n)
		}
	}
	return b.String()
}
