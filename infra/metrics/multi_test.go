package metrics

import (
	"errors"
	"testing"

	coremetrics "github.com/parkade/parkade/core/metrics"
)

type countingSink struct {
	entries, exits, fines int
	err                   error
}

func (s *countingSink) RecordEntry(coremetrics.EntryEvent) error { s.entries++; return s.err }
func (s *countingSink) RecordExit(coremetrics.ExitEvent) error   { s.exits++; return s.err }
func (s *countingSink) RecordFine(coremetrics.FineEvent) error   { s.fines++; return s.err }

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := NewMultiSink(a, b)

	if err := m.RecordEntry(coremetrics.EntryEvent{}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if err := m.RecordExit(coremetrics.ExitEvent{}); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if err := m.RecordFine(coremetrics.FineEvent{}); err != nil {
		t.Fatalf("fine: %v", err)
	}
	for _, s := range []*countingSink{a, b} {
		if s.entries != 1 || s.exits != 1 || s.fines != 1 {
			t.Errorf("sink counts = %+v", s)
		}
	}
}

func TestMultiSinkCollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{err: boom}, &countingSink{}
	m := NewMultiSink(a, b)

	err := m.RecordEntry(coremetrics.EntryEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	// The healthy sink still saw the event.
	if b.entries != 1 {
		t.Errorf("healthy sink entries = %d", b.entries)
	}
}
