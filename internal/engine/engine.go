package engine

import (
	"context"
	"time"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
)

const (
	// EngineFallback identifies the always-available local calculator.
	EngineFallback = "fallback"
	// EnginePrimary identifies the remote evaluator.
	EnginePrimary = "primary"
)

// Input is one evaluation request: parallel per-candidate vectors. Labels may
// be nil when no ground truth exists; the calculator then substitutes the
// documented predicted-positive proxy for equal opportunity.
type Input struct {
	Predictions []int    `json:"predictions"`
	Labels      []int    `json:"labels,omitempty"`
	Sensitive   []string `json:"sensitive_features"`
}

// Evaluation is the engine-agnostic output shape. Whichever engine answered
// is recorded in Engine; callers never see a different structure because the
// primary was unreachable.
type Evaluation struct {
	Metrics   *fairness.Metrics `json:"metrics"`
	Engine    string            `json:"engine"`
	Timestamp time.Time         `json:"timestamp"`
}

// Engine computes fairness metrics for an input. Implementations must treat
// the input as read-only.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, in *Input) (*Evaluation, error)
}

// Fallback is the local metrics calculator behind the Engine contract. It
// never needs the network and only fails on malformed input.
type Fallback struct {
	Thresholds fairness.Thresholds
}

func NewFallback() *Fallback {
	return &Fallback{Thresholds: fairness.DefaultThresholds()}
}

func (f *Fallback) Name() string { return EngineFallback }

func (f *Fallback) Evaluate(_ context.Context, in *Input) (*Evaluation, error) {
	metrics, err := fairness.EvaluateWithThresholds(in.Predictions, in.Labels, in.Sensitive, f.Thresholds)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Metrics:   metrics,
		Engine:    EngineFallback,
		Timestamp: time.Now().UTC(),
	}, nil
}
