package semconv

// Span attribute keys emitted by the evaluation tools.
const (
	AttrPredictorKind     = "perfeval.predictor.kind"
	AttrPredictorWarnings = "perfeval.predictor.warnings"
	AttrBacktestEvents    = "perfeval.backtest.events"
	AttrBacktestSamples   = "perfeval.backtest.samples"
	AttrBacktestEvent     = "perfeval.backtest.event"
	AttrBacktestTestSize  = "perfeval.backtest.test_size"
	AttrAlignedCalls      = "perfeval.align.aligned_calls"
	AttrCoverageRatio     = "perfeval.align.coverage_ratio"
)
