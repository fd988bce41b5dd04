package recorder

import "KabuSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAnalysis(_ *model.Analysis) error { return nil }
func (n *NoopRecorder) RecordBacktest(_ string, _ *model.BacktestSummary) (string, error) {
	return "", nil
}
func (n *NoopRecorder) RecordScan(_ []model.ScanResult) error            { return nil }
func (n *NoopRecorder) RecordAlert(_ model.PriceAlert, _ float64) error  { return nil }
func (n *NoopRecorder) LatestAnalysis(_ string) (*AnalysisRecord, error) { return nil, ErrNotFound }
func (n *NoopRecorder) Close() error                                     { return nil }
