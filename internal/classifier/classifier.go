// Package classifier estimates a target's severity class and survival
// probability from its vital-signal vector.
package classifier

import (
	"errors"
	"fmt"
)

// FeatureCount is the number of features a model consumes.
const FeatureCount = 10

// DefaultFeatureOffset skips the leading identifier in a raw signal vector.
const DefaultFeatureOffset = 1

var (
	// ErrMalformedSignals means the vector is too short to hold the features.
	ErrMalformedSignals = errors.New("malformed signal vector")

	// ErrUnavailable means no model is loaded.
	ErrUnavailable = errors.New("classifier unavailable")
)

// Result is a classification outcome.
type Result struct {
	Severity int     `json:"severity"`
	Survival float64 `json:"survival"`
}

// Sentinel is the result used whenever classification is impossible.
var Sentinel = Result{Severity: -1, Survival: 0}

// Classifier maps a feature vector to a Result.
type Classifier interface {
	Classify(features []float64) (Result, error)
}

// Unavailable is the classifier used when no model is configured.
type Unavailable struct{}

// Classify always fails with ErrUnavailable.
func (Unavailable) Classify([]float64) (Result, error) {
	return Sentinel, ErrUnavailable
}

// ExtractFeatures returns the FeatureCount features starting at offset.
func ExtractFeatures(signals []float64, offset int) ([]float64, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative feature offset %d", offset)
	}
	if len(signals) < offset+FeatureCount {
		return nil, fmt.Errorf("%w: got %d values, need %d", ErrMalformedSignals, len(signals), offset+FeatureCount)
	}
	out := make([]float64, FeatureCount)
	copy(out, signals[offset:offset+FeatureCount])
	return out, nil
}

// ClassifySignals extracts features from a raw vector and classifies them.
// Any failure yields Sentinel along with the error.
func ClassifySignals(c Classifier, signals []float64, offset int) (Result, error) {
	if c == nil {
		return Sentinel, ErrUnavailable
	}
	features, err := ExtractFeatures(signals, offset)
	if err != nil {
		return Sentinel, err
	}
	res, err := c.Classify(features)
	if err != nil {
		return Sentinel, err
	}
	return res, nil
}
