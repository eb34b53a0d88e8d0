package history

import (
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-tracker/internal/action"
)

func sampleEvents() []action.Event {
	return []action.Event{
		{Kind: action.Blink, Description: "eye blink", Confidence: 0.85, Magnitude: 0.45, Timestamp: 1200 * time.Millisecond},
		{Kind: action.MoveRight, Description: "head moved right", Confidence: 0.92, Magnitude: 24.5, Timestamp: 2500 * time.Millisecond},
		{Kind: action.Smile, Description: "smile", Confidence: 0.7, Magnitude: 0.2, Timestamp: 2500 * time.Millisecond},
		{Kind: action.Blink, Description: "eye blink", Confidence: 0.6, Magnitude: 0.3, Timestamp: 4 * time.Second},
	}
}

func TestFileRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	started := time.Now().Truncate(time.Millisecond)

	rec, err := NewFileRecorder(dir, "Alice", started)
	if err != nil {
		t.Fatalf("NewFileRecorder() error: %v", err)
	}

	if err := rec.Status("target face selected: Alice"); err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	events := sampleEvents()
	for _, e := range events {
		if err := rec.Record(e); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	if err := rec.Finalize(); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	log, err := ReadFile(rec.Path())
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}

	if log.Target != "Alice" {
		t.Errorf("Target = %q, want Alice", log.Target)
	}
	if log.SessionID != rec.SessionID() {
		t.Errorf("SessionID = %q, want %q", log.SessionID, rec.SessionID())
	}
	if !log.Finalized {
		t.Error("summary record missing")
	}
	if len(log.Events) != len(events) {
		t.Fatalf("read %d events, want %d", len(log.Events), len(events))
	}

	// Kind, confidence, magnitude and timestamp order survive exactly.
	for i, e := range events {
		got := log.Events[i]
		if got.Kind != e.Kind {
			t.Errorf("event %d kind = %v, want %v", i, got.Kind, e.Kind)
		}
		if got.Confidence != e.Confidence {
			t.Errorf("event %d confidence = %v, want %v", i, got.Confidence, e.Confidence)
		}
		if got.Magnitude != e.Magnitude {
			t.Errorf("event %d magnitude = %v, want %v", i, got.Magnitude, e.Magnitude)
		}
		if got.Timestamp != e.Timestamp {
			t.Errorf("event %d timestamp = %v, want %v", i, got.Timestamp, e.Timestamp)
		}
	}
	for i := 1; i < len(log.Events); i++ {
		if log.Events[i].Timestamp < log.Events[i-1].Timestamp {
			t.Errorf("event %d out of order: %v < %v", i, log.Events[i].Timestamp, log.Events[i-1].Timestamp)
		}
	}

	if log.Total != len(events) {
		t.Errorf("summary total = %d, want %d", log.Total, len(events))
	}
	if log.ByKind[action.Blink] != 2 {
		t.Errorf("summary blink count = %d, want 2", log.ByKind[action.Blink])
	}
}

func TestFileRecorderFilename(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewFileRecorder(dir, "Jan-Novák", time.UnixMilli(1730000000000))
	if err != nil {
		t.Fatalf("NewFileRecorder() error: %v", err)
	}
	defer rec.Finalize()

	if want := "jan_novak_history_1730000000000.jsonl"; !strings.HasSuffix(rec.Path(), want) {
		t.Errorf("Path() = %q, want suffix %q", rec.Path(), want)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewFileRecorder(dir, "alice", time.Now())
	if err != nil {
		t.Fatalf("NewFileRecorder() error: %v", err)
	}

	if err := rec.Finalize(); err != nil {
		t.Fatalf("first Finalize() error: %v", err)
	}
	if err := rec.Finalize(); err != nil {
		t.Errorf("second Finalize() error: %v, want nil", err)
	}

	// Writes after finalize are refused.
	if err := rec.Record(action.Event{Kind: action.Blink}); err == nil {
		t.Error("Record() after Finalize() should fail")
	}
}

func TestSummaryOutput(t *testing.T) {
	log := &SessionLog{
		SessionID: "abc",
		Target:    "alice",
		Events:    sampleEvents(),
		ByKind:    map[action.Kind]int{action.Blink: 2, action.Smile: 1, action.MoveRight: 1},
	}
	out := log.Summary()
	if !strings.Contains(out, "target=alice") {
		t.Errorf("Summary() missing target: %q", out)
	}
	if !strings.Contains(out, "blink") || !strings.Contains(out, "2") {
		t.Errorf("Summary() missing kind counts: %q", out)
	}
}

func TestReadFileErrors(t *testing.T) {
	if _, err := ReadFile("/nonexistent/file.jsonl"); err == nil {
		t.Error("expected error for missing file")
	}
}
