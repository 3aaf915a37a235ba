// Package series holds the immutable, time-indexed market series fed to the
// simulation engine. A series is validated once on construction; the engine
// never reaches back into a data provider mid-run.
package series

import (
	"sort"
	"time"

	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Series is an ordered sequence of OHLCV bars for one instrument/timeframe.
// Immutable once loaded.
type Series struct {
	symbol    string
	timeframe string
	bars      []types.Bar
}

// New validates the given bars and constructs a series. Out-of-order or
// duplicate timestamps are fatal: the run must abort before it starts.
func New(symbol string, timeframe string, bars []types.Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataEmptySeries, "series %s has no bars", symbol)
	}

	for i, bar := range bars {
		if bar.High < bar.Low || bar.Open <= 0 || bar.Close <= 0 {
			return nil, errors.Newf(errors.ErrCodeDataInvalidBar,
				"series %s bar %d has invalid OHLC (open=%f high=%f low=%f close=%f)",
				symbol, i, bar.Open, bar.High, bar.Low, bar.Close)
		}

		if i == 0 {
			continue
		}

		if bar.Time.Equal(bars[i-1].Time) {
			return nil, errors.Newf(errors.ErrCodeDataDuplicateBar,
				"series %s has duplicate timestamp at bar %d (%s)", symbol, i, bar.Time)
		}

		if bar.Time.Before(bars[i-1].Time) {
			return nil, errors.Newf(errors.ErrCodeDataOutOfOrder,
				"series %s bar %d (%s) precedes bar %d (%s)",
				symbol, i, bar.Time, i-1, bars[i-1].Time)
		}
	}

	return &Series{
		symbol:    symbol,
		timeframe: timeframe,
		bars:      bars,
	}, nil
}

// Symbol returns the instrument symbol.
func (s *Series) Symbol() string {
	return s.symbol
}

// Timeframe returns the bar timeframe label (e.g. "1h").
func (s *Series) Timeframe() string {
	return s.timeframe
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bar returns the bar at index i.
func (s *Series) Bar(i int) (types.Bar, error) {
	if i < 0 || i >= len(s.bars) {
		return types.Bar{}, errors.Newf(errors.ErrCodeDataIndexOutOfRange,
			"bar index %d out of range [0,%d)", i, len(s.bars))
	}

	return s.bars[i], nil
}

// Bars returns the full bar sequence. Callers must treat the slice as
// read-only.
func (s *Series) Bars() []types.Bar {
	return s.bars
}

// Window returns the bars visible at bar index i: bars [0..i] inclusive.
// Strategies must never see bars beyond i.
func (s *Series) Window(i int) []types.Bar {
	if i < 0 {
		return nil
	}

	if i >= len(s.bars) {
		i = len(s.bars) - 1
	}

	return s.bars[:i+1]
}

// Slice returns a sub-series over bar indices [start, end). The slice shares
// the backing array; bars stay immutable either way.
func (s *Series) Slice(start, end int) (*Series, error) {
	if start < 0 || end > len(s.bars) || start >= end {
		return nil, errors.Newf(errors.ErrCodeDataRangeInvalid,
			"invalid slice [%d,%d) of series with %d bars", start, end, len(s.bars))
	}

	return &Series{
		symbol:    s.symbol,
		timeframe: s.timeframe,
		bars:      s.bars[start:end],
	}, nil
}

// BarInterval returns the typical (median) spacing between consecutive bars.
func (s *Series) BarInterval() time.Duration {
	if len(s.bars) < 2 {
		return 0
	}

	deltas := make([]time.Duration, 0, len(s.bars)-1)
	for i := 1; i < len(s.bars); i++ {
		deltas = append(deltas, s.bars[i].Time.Sub(s.bars[i-1].Time))
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })

	return deltas[len(deltas)/2]
}

// BarsPerYear estimates the bar frequency used to annualize return metrics.
func (s *Series) BarsPerYear() float64 {
	interval := s.BarInterval()
	if interval <= 0 {
		return 252 // daily equities default
	}

	const yearHours = 365.25 * 24

	return yearHours / interval.Hours()
}

// QualityReport describes the completeness of a loaded series.
type QualityReport struct {
	// Score in [0,1]: fraction of expected bars actually present.
	Score float64 `yaml:"score" json:"score"`
	// Gaps is the number of intervals larger than 1.5x the typical spacing.
	Gaps int `yaml:"gaps" json:"gaps"`
	// HasGaps is true when any gap was found.
	HasGaps bool `yaml:"has_gaps" json:"has_gaps"`
}

// Quality scans the series for gaps relative to its typical bar interval.
// Duplicates cannot occur here: construction rejects them.
func (s *Series) Quality() QualityReport {
	interval := s.BarInterval()
	if interval <= 0 || len(s.bars) < 2 {
		return QualityReport{Score: 1, Gaps: 0, HasGaps: false}
	}

	gaps := 0
	missing := 0.0

	for i := 1; i < len(s.bars); i++ {
		delta := s.bars[i].Time.Sub(s.bars[i-1].Time)
		if delta > interval+interval/2 {
			gaps++
			missing += delta.Hours()/interval.Hours() - 1
		}
	}

	expected := float64(len(s.bars)) + missing
	score := float64(len(s.bars)) / expected

	return QualityReport{
		Score:   score,
		Gaps:    gaps,
		HasGaps: gaps > 0,
	}
}
