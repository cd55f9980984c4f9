package metrics

import "testing"

type recordSink struct {
	count int
}

func (r *recordSink) RecordCommand(CommandResult) error {
	r.count++
	return nil
}

func (r *recordSink) RecordTick(TickSummary) error {
	r.count++
	return nil
}

// commandOnly does not implement the optional recorders.
type commandOnly struct{ count int }

func (c *commandOnly) RecordCommand(CommandResult) error {
	c.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	s3 := &commandOnly{}
	m := NewMultiSink(s1, s2, s3)
	if err := m.RecordCommand(CommandResult{}); err != nil {
		t.Fatalf("record command: %v", err)
	}
	if err := m.RecordTick(TickSummary{}); err != nil {
		t.Fatalf("record tick: %v", err)
	}
	if err := m.RecordTransition(Transition{}); err != nil {
		t.Fatalf("record transition: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded")
	}
	if s3.count != 1 {
		t.Fatalf("command-only sink got %d records", s3.count)
	}
}
