package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordMission forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordMission(ev MissionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordMission(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordReplacement forwards replacements when supported by the sink.
func (m *MultiSink) RecordReplacement(ev ReplacementEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ReplacementRecorder); ok {
			if err := rec.RecordReplacement(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetState forwards fleet summaries when supported by the sink.
func (m *MultiSink) RecordFleetState(ev FleetStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FleetStateRecorder); ok {
			if err := rec.RecordFleetState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
