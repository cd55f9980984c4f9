package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommand forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCommand(res CommandResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordCommand(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition forwards transitions to sinks that support them.
func (m *MultiSink) RecordTransition(ev Transition) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSchedule forwards schedule updates.
func (m *MultiSink) RecordSchedule(ev ScheduleUpdate) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ScheduleRecorder); ok {
			if err := rec.RecordSchedule(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTick forwards loop summaries.
func (m *MultiSink) RecordTick(ev TickSummary) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TickRecorder); ok {
			if err := rec.RecordTick(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConsumerState forwards consumer snapshots.
func (m *MultiSink) RecordConsumerState(ev ConsumerState) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConsumerStateRecorder); ok {
			if err := rec.RecordConsumerState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
