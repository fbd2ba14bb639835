package internal

import (
	"bytes"
	"testing"
)

func TestProgressDisabled(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, false)

	p.StartPhase("schema", 3)
	p.Incr()
	p.Stop()

	if p.bar != nil {
		t.Error("Expected no bar when progress is disabled")
	}
}

func TestProgressPhases(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, true)
	defer p.Stop()

	p.StartPhase("schema", 2)
	if p.bar == nil {
		t.Fatal("Expected a bar for the schema phase")
	}
	p.Incr()
	p.Incr()
	if p.bar.Current() != 2 {
		t.Errorf("Expected bar at 2, got %d", p.bar.Current())
	}

	p.StartPhase("data", 5)
	if p.bar.Total != 5 {
		t.Errorf("Expected data bar total 5, got %d", p.bar.Total)
	}

	p.StartPhase("triggers", 0)
	if p.bar.Total != 5 {
		t.Error("Expected empty phase to keep the previous bar")
	}
}
