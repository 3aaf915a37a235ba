// Package selector implements the ML-style signal selection layer:
// temperature-scaled probabilistic selection, epsilon-greedy strategy
// selection, and a trainable direction predictor used to blend signals.
package selector

import (
	"math"
	"math/rand"

	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Candidate is one (strategy, signal, weight) tuple offered to a selector.
type Candidate struct {
	StrategyID string
	Signal     types.Signal
	Weight     float64
}

// SoftmaxConfig parameterizes a SoftmaxSelector.
type SoftmaxConfig struct {
	// Temperature scales the confidence differences. Lower temperatures
	// concentrate probability on the maximum-confidence candidate.
	Temperature float64 `yaml:"temperature" json:"temperature"`
	// MinProb is an enforced floor probability per candidate; probabilities
	// renormalize after flooring.
	MinProb float64 `yaml:"min_prob" json:"min_prob"`
	// Argmax switches to deterministic maximum-confidence selection.
	Argmax bool `yaml:"argmax" json:"argmax"`
	// Seed fixes the random source for reproducible selection.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultSoftmaxConfig returns a moderately exploratory configuration.
func DefaultSoftmaxConfig() SoftmaxConfig {
	return SoftmaxConfig{
		Temperature: 1.0,
		MinProb:     0.01,
		Argmax:      false,
		Seed:        1,
	}
}

// SoftmaxSelector picks among candidate signals by a temperature-scaled
// probability distribution over their confidences.
type SoftmaxSelector struct {
	config SoftmaxConfig
	rng    *rand.Rand
}

// NewSoftmaxSelector validates the configuration and constructs a selector.
func NewSoftmaxSelector(config SoftmaxConfig) (*SoftmaxSelector, error) {
	if config.Temperature <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidTemperature,
			"temperature must be positive, got %f", config.Temperature)
	}

	if config.MinProb < 0 || config.MinProb >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"min probability must be in [0,1), got %f", config.MinProb)
	}

	return &SoftmaxSelector{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Probabilities returns the softmax distribution over the candidates'
// confidences, after applying the configured floor.
func (s *SoftmaxSelector) Probabilities(candidates []Candidate) []float64 {
	if len(candidates) == 0 {
		return nil
	}

	// subtract the max before exponentiating so tiny temperatures stay
	// finite
	maxConf := candidates[0].Signal.Confidence
	for _, c := range candidates[1:] {
		if c.Signal.Confidence > maxConf {
			maxConf = c.Signal.Confidence
		}
	}

	probs := make([]float64, len(candidates))
	sum := 0.0

	for i, c := range candidates {
		probs[i] = math.Exp((c.Signal.Confidence - maxConf) / s.config.Temperature)
		sum += probs[i]
	}

	for i := range probs {
		probs[i] /= sum
	}

	if s.config.MinProb > 0 {
		floored := 0.0
		for i := range probs {
			if probs[i] < s.config.MinProb {
				probs[i] = s.config.MinProb
			}

			floored += probs[i]
		}

		for i := range probs {
			probs[i] /= floored
		}
	}

	return probs
}

// Select picks a candidate: stochastically by the softmax distribution, or
// deterministically by maximum confidence in argmax mode.
func (s *SoftmaxSelector) Select(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, errors.New(errors.ErrCodeNoCandidates, "no candidates to select from")
	}

	if s.config.Argmax {
		best := 0
		for i, c := range candidates[1:] {
			if c.Signal.Confidence > candidates[best].Signal.Confidence {
				best = i + 1
			}
		}

		return candidates[best], nil
	}

	probs := s.Probabilities(candidates)

	draw := s.rng.Float64()
	cumulative := 0.0

	for i, p := range probs {
		cumulative += p
		if draw < cumulative {
			return candidates[i], nil
		}
	}

	// floating-point shortfall lands on the last candidate
	return candidates[len(candidates)-1], nil
}
