package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Data errors (100-199): malformed market series, fatal before a run starts
	ErrCodeDataOutOfOrder      ErrorCode = 100
	ErrCodeDataDuplicateBar    ErrorCode = 101
	ErrCodeDataEmptySeries     ErrorCode = 102
	ErrCodeDataInvalidBar      ErrorCode = 103
	ErrCodeDataLoadFailed      ErrorCode = 104
	ErrCodeDataRangeInvalid    ErrorCode = 105
	ErrCodeDataMissingColumn   ErrorCode = 106
	ErrCodeDataParseFailed     ErrorCode = 107
	ErrCodeDataSeriesTooShort  ErrorCode = 108
	ErrCodeDataIndexOutOfRange ErrorCode = 109

	// Configuration errors (200-299): invalid parameter combinations, fatal at construction
	ErrCodeInvalidConfiguration  ErrorCode = 200
	ErrCodeInvalidInitialCapital ErrorCode = 201
	ErrCodeInvalidCommission     ErrorCode = 202
	ErrCodeInvalidSlippage       ErrorCode = 203
	ErrCodeInvalidPositionSize   ErrorCode = 204
	ErrCodeInvalidSpeedMode      ErrorCode = 205
	ErrCodeInvalidMarginLevel    ErrorCode = 206
	ErrCodeInvalidInSamplePct    ErrorCode = 207
	ErrCodeInvalidWindowCount    ErrorCode = 208
	ErrCodeInvalidMetricName     ErrorCode = 209
	ErrCodeInvalidTemperature    ErrorCode = 210
	ErrCodeInvalidEpsilon        ErrorCode = 211
	ErrCodeInvalidWeightMethod   ErrorCode = 212
	ErrCodeInvalidRebalance      ErrorCode = 213
	ErrCodeEmptyParamGrid        ErrorCode = 214
	ErrCodeInvalidSimCount       ErrorCode = 215

	// Strategy errors (300-399): per-bar evaluation failures, non-fatal by default
	ErrCodeStrategyEvaluation ErrorCode = 300
	ErrCodeStrategyNotFound   ErrorCode = 301
	ErrCodeNoStrategies       ErrorCode = 302
	ErrCodeStrategyConfig     ErrorCode = 303
	ErrCodeDuplicateStrategy  ErrorCode = 304

	// Execution constraint violations (400-499): rejected entries, logged, non-fatal
	ErrCodePositionLimitReached ErrorCode = 400
	ErrCodeShortSellingDisabled ErrorCode = 401
	ErrCodeInsufficientEquity   ErrorCode = 402
	ErrCodeZeroQuantity         ErrorCode = 403

	// Margin errors (500-599): fatal for the run, ledger finalized up to that point
	ErrCodeMarginCall ErrorCode = 500

	// Optimizer / Monte Carlo errors (600-699)
	ErrCodeOptimizationFailed ErrorCode = 600
	ErrCodeNoTrades           ErrorCode = 601
	ErrCodeBatchCancelled     ErrorCode = 602

	// Selector errors (700-799)
	ErrCodeNoCandidates    ErrorCode = 700
	ErrCodeSelectionFailed ErrorCode = 701

	// Export errors (800-899)
	ErrCodeStoreOpen     ErrorCode = 800
	ErrCodeStoreWrite    ErrorCode = 801
	ErrCodeStoreQuery    ErrorCode = 802
	ErrCodeParquetExport ErrorCode = 803
)
