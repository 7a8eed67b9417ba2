package audit

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "events.sqlite"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Record(&Event{
		Kind:         EventGate,
		LabelID:      1,
		LabelName:    "T cells",
		Channel:      "CD3",
		Threshold:    0.5,
		IntensityKey: "mean",
		Step:         1,
		NumCells:     6,
		NumAssigned:  6,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero event id")
	}

	if _, err := s.Record(&Event{Kind: EventRemove, LabelID: 1, LabelName: "T cells"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	events, err := s.ListEvents(10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Newest first.
	if events[0].Kind != EventRemove || events[1].Kind != EventGate {
		t.Errorf("order = %v, %v", events[0].Kind, events[1].Kind)
	}
	gate := events[1]
	if gate.Channel != "CD3" || gate.Threshold != 0.5 || gate.NumCells != 6 {
		t.Errorf("gate event = %+v", gate)
	}
	if gate.CreatedAt.IsZero() {
		t.Error("created_at not persisted")
	}
}

func TestListEventsByLabel(t *testing.T) {
	s := newTestStore(t)

	for _, labelID := range []int{1, 2, 1} {
		if _, err := s.Record(&Event{Kind: EventGate, LabelID: labelID, LabelName: "x"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	events, err := s.ListEventsByLabel(1)
	if err != nil {
		t.Fatalf("ListEventsByLabel failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events for label 1, want 2", len(events))
	}
	// Oldest first.
	if len(events) == 2 && events[0].ID > events[1].ID {
		t.Error("events not in insertion order")
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(&Event{Kind: EventGate, LabelID: 3, LabelName: "x", Override: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	events, err := s.ListEvents(1)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || !events[0].Override {
		t.Errorf("override flag lost: %+v", events)
	}
}
