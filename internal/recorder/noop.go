package recorder

import "context"

// NoopRecorder is a no-op implementation used when history is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ context.Context, _ *Run) error { return nil }
func (n *NoopRecorder) RecentRuns(_ context.Context, _ int) ([]Run, error) {
	return []Run{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
