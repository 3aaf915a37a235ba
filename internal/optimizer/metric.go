package optimizer

import (
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Metric names accepted by the optimizer.
const (
	MetricNetProfit    = "net_profit"
	MetricTotalReturn  = "total_return"
	MetricSharpe       = "sharpe_ratio"
	MetricSortino      = "sortino_ratio"
	MetricCalmar       = "calmar_ratio"
	MetricProfitFactor = "profit_factor"
	MetricWinRate      = "win_rate"
	MetricExpectancy   = "expectancy"
)

// metricExtractors maps each accepted name to its report field.
var metricExtractors = map[string]func(types.PerformanceReport) float64{
	MetricNetProfit:    func(r types.PerformanceReport) float64 { return r.NetProfit },
	MetricTotalReturn:  func(r types.PerformanceReport) float64 { return r.TotalReturn },
	MetricSharpe:       func(r types.PerformanceReport) float64 { return r.SharpeRatio },
	MetricSortino:      func(r types.PerformanceReport) float64 { return r.SortinoRatio },
	MetricCalmar:       func(r types.PerformanceReport) float64 { return r.CalmarRatio },
	MetricProfitFactor: func(r types.PerformanceReport) float64 { return r.ProfitFactor },
	MetricWinRate:      func(r types.PerformanceReport) float64 { return r.WinRate },
	MetricExpectancy:   func(r types.PerformanceReport) float64 { return r.Expectancy },
}

// metricExtractor resolves a metric name, failing at construction time for
// unknown names.
func metricExtractor(name string) (func(types.PerformanceReport) float64, error) {
	extract, ok := metricExtractors[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidMetricName,
			"unknown optimization metric %q", name)
	}

	return extract, nil
}
