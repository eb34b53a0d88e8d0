package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-tracker/internal/movement"
)

func TestMemoryPublisherRecordsCommands(t *testing.T) {
	pub := NewMemoryPublisher()

	cmd := movement.Command{Status: movement.MoveLeft, Confidence: 0.9, Timestamp: 1730000000}
	if err := pub.PublishMovement(cmd); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
	if err := pub.PublishHeartbeat(time.Now()); err != nil {
		t.Fatalf("unexpected heartbeat error: %v", err)
	}

	got := pub.Commands()
	if len(got) != 1 {
		t.Fatalf("expected 1 command, got %d", len(got))
	}
	if got[0] != cmd {
		t.Errorf("expected %+v, got %+v", cmd, got[0])
	}
	if pub.Heartbeats() != 1 {
		t.Errorf("expected 1 heartbeat, got %d", pub.Heartbeats())
	}
}

func TestMemoryPublisherErrorInjection(t *testing.T) {
	pub := NewMemoryPublisher()
	boom := errors.New("broker down")
	pub.SetErr(boom)

	err := pub.PublishMovement(movement.Command{Status: movement.Centered})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(pub.Commands()) != 0 {
		t.Errorf("failed publish must not be recorded")
	}

	pub.SetErr(nil)
	if err := pub.PublishMovement(movement.Command{Status: movement.Centered}); err != nil {
		t.Fatalf("unexpected error after clearing injection: %v", err)
	}
	if len(pub.Commands()) != 1 {
		t.Errorf("expected 1 command after recovery, got %d", len(pub.Commands()))
	}
}
