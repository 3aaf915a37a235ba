package selector

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/helixquant/backsim/internal/strategy"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Predictor estimates the probability of an upward move from a feature
// vector. Implementations own their training; the ensemble layer only
// consumes predictions.
type Predictor interface {
	// Predict returns the probability in [0,1] that the next move is up.
	Predict(features []float64) (float64, error)
}

// LogisticPredictor is an online logistic regression over a fixed-size
// feature vector, trained by stochastic gradient descent one observation at a
// time.
type LogisticPredictor struct {
	weights      []float64
	bias         float64
	learningRate float64
}

// NewLogisticPredictor creates a predictor over dim features.
func NewLogisticPredictor(dim int, learningRate float64) (*LogisticPredictor, error) {
	if dim < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"feature dimension must be at least 1, got %d", dim)
	}

	if learningRate <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"learning rate must be positive, got %f", learningRate)
	}

	return &LogisticPredictor{
		weights:      make([]float64, dim),
		learningRate: learningRate,
	}, nil
}

// Predict implements Predictor.
func (p *LogisticPredictor) Predict(features []float64) (float64, error) {
	if len(features) != len(p.weights) {
		return 0, errors.Newf(errors.ErrCodeSelectionFailed,
			"expected %d features, got %d", len(p.weights), len(features))
	}

	z := p.bias
	for i, f := range features {
		z += p.weights[i] * f
	}

	return sigmoid(z), nil
}

// Update performs one gradient step toward the observed label (1 for an up
// move, 0 for a down move).
func (p *LogisticPredictor) Update(features []float64, label float64) error {
	predicted, err := p.Predict(features)
	if err != nil {
		return err
	}

	gradient := predicted - label

	for i, f := range features {
		p.weights[i] -= p.learningRate * gradient * f
	}
	p.bias -= p.learningRate * gradient

	return nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// PredictorBlend wraps a strategy and scales its signal confidence by how
// much a direction predictor agrees with the signal. The sub-strategy's
// direction is never overridden, only its conviction.
type PredictorBlend struct {
	inner     strategy.Strategy
	predictor Predictor
	// blendAlpha is the share of the original confidence kept; the rest
	// comes from the predictor's directional probability.
	blendAlpha float64
	// featureBars is how many trailing bar returns feed the predictor.
	featureBars int
}

// NewPredictorBlend wraps inner with the given predictor. alpha in [0,1] is
// the share of the sub-strategy's own confidence in the blended value.
func NewPredictorBlend(inner strategy.Strategy, predictor Predictor, alpha float64, featureBars int) (*PredictorBlend, error) {
	if alpha < 0 || alpha > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"blend alpha must be in [0,1], got %f", alpha)
	}

	if featureBars < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"feature bars must be at least 1, got %d", featureBars)
	}

	return &PredictorBlend{
		inner:       inner,
		predictor:   predictor,
		blendAlpha:  alpha,
		featureBars: featureBars,
	}, nil
}

// Name implements strategy.Strategy.
func (b *PredictorBlend) Name() string {
	return b.inner.Name() + "+predictor"
}

// Evaluate implements strategy.Strategy.
func (b *PredictorBlend) Evaluate(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
	signal, err := b.inner.Evaluate(ctx, window)
	if err != nil || signal.IsNone() {
		return signal, err
	}

	s := signal.Unwrap()
	if !s.IsActionable() {
		return signal, nil
	}

	features := Features(window, b.featureBars)
	if features == nil {
		// not enough history for the predictor, pass the signal through
		return signal, nil
	}

	upProb, err := b.predictor.Predict(features)
	if err != nil {
		return optional.None[types.Signal](), errors.Wrap(errors.ErrCodeSelectionFailed,
			"predictor rejected feature vector", err)
	}

	directionProb := upProb
	if s.Direction == types.DirectionShort {
		directionProb = 1 - upProb
	}

	s.Confidence = b.blendAlpha*s.Confidence + (1-b.blendAlpha)*directionProb
	s.StrategyID = b.Name()

	return optional.Some(s), nil
}

// Features builds the predictor input from a bar window: the last n simple
// close-to-close returns, oldest first. Returns nil when the window is too
// short.
func Features(window []types.Bar, n int) []float64 {
	if len(window) < n+1 {
		return nil
	}

	features := make([]float64, 0, n)

	for i := len(window) - n; i < len(window); i++ {
		prev := window[i-1].Close
		if prev == 0 {
			features = append(features, 0)

			continue
		}

		features = append(features, (window[i].Close-prev)/prev)
	}

	return features
}
