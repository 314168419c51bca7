// Package screening is the public surface of the bias-mitigation subsystem:
// it shortlists scored candidates under a disparity bound, evaluates fairness
// metrics through the engine proxy, and reports engine health. It accepts and
// returns in-memory structures only; fetching and persisting data belongs to
// the surrounding system.
package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/engine"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/report"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/shortlist"
)

// ErrConfiguration marks input rejected at the boundary: unknown method
// names, selection percentages outside (0,1], attribute keys no candidate
// carries, mismatched evaluation vectors. These are never retried or
// silently defaulted.
var ErrConfiguration = errors.New("invalid configuration")

type Service struct {
	proxy      *engine.Proxy
	thresholds fairness.Thresholds
	logger     *zap.Logger
}

func New(proxy *engine.Proxy, thresholds fairness.Thresholds, logger *zap.Logger) *Service {
	return &Service{
		proxy:      proxy,
		thresholds: thresholds,
		logger:     logger,
	}
}

// ShortlistRequest configures one shortlisting run.
type ShortlistRequest struct {
	Pool      *candidate.Pool
	Method    string
	Attribute string
	// SelectionPercentage in (0,1]; ignored when TargetSize is set.
	SelectionPercentage float64
	// TargetSize overrides SelectionPercentage when positive.
	TargetSize int
	// DisparateImpactThreshold in (0,1]; zero means the 80% default.
	DisparateImpactThreshold float64
}

type ShortlistResponse struct {
	SelectedIDs []string
	Result      *shortlist.Result
	Report      *report.FairnessReport
}

func (s *Service) Shortlist(_ context.Context, req ShortlistRequest) (*ShortlistResponse, error) {
	method, opts, err := s.validateShortlist(req)
	if err != nil {
		return nil, err
	}

	strategy, err := shortlist.New(method, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	s.logger.Info("shortlisting candidates",
		zap.String("method", string(method)),
		zap.String("attribute", req.Attribute),
		zap.Int("pool_size", req.Pool.Len()),
	)

	result, err := strategy.Apply(req.Pool, opts)
	if err != nil {
		return nil, err
	}

	thresholds := s.thresholds
	if req.DisparateImpactThreshold > 0 {
		thresholds.DisparateImpactMin = req.DisparateImpactThreshold
	}

	// The shortlist path audits its own selection with the local calculator;
	// the proxy exists for callers evaluating external decisions.
	metrics, err := fairness.EvaluateWithThresholds(
		predictionsOf(result),
		nil,
		sensitiveOf(req.Pool, req.Attribute),
		thresholds,
	)
	if err != nil {
		return nil, err
	}

	assembler := report.NewAssembler(thresholds)
	rep := assembler.AssembleShortlist(metrics, result, scoresByGroup(req.Pool, req.Attribute), engine.EngineFallback, time.Now().UTC())

	return &ShortlistResponse{
		SelectedIDs: result.SelectedIDs,
		Result:      result,
		Report:      rep,
	}, nil
}

// Evaluate routes an external selection decision through the engine proxy.
// Whichever engine answered is identified in the returned report, never by a
// different structure or an error.
func (s *Service) Evaluate(ctx context.Context, predictions []int, labels []int, sensitive []string) (*report.FairnessReport, error) {
	if len(predictions) != len(sensitive) {
		return nil, fmt.Errorf("%w: predictions (%d) and sensitive features (%d) must have the same length", ErrConfiguration, len(predictions), len(sensitive))
	}
	if labels != nil && len(labels) != len(predictions) {
		return nil, fmt.Errorf("%w: labels (%d) and predictions (%d) must have the same length", ErrConfiguration, len(labels), len(predictions))
	}
	for _, vec := range [][]int{predictions, labels} {
		for _, v := range vec {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: predictions and labels must be binary, got %d", ErrConfiguration, v)
			}
		}
	}

	ev, err := s.proxy.Evaluate(ctx, &engine.Input{
		Predictions: predictions,
		Labels:      labels,
		Sensitive:   sensitive,
	})
	if err != nil {
		return nil, err
	}

	assembler := report.NewAssembler(s.thresholds)
	return assembler.Assemble(ev.Metrics, ev.Engine, ev.Timestamp), nil
}

// EngineHealth describes one engine in the health report.
type EngineHealth struct {
	Status    string `json:"status"`
	Successes int64  `json:"successes,omitempty"`
	Failures  int64  `json:"failures,omitempty"`
}

type HealthReport struct {
	Fallback     EngineHealth `json:"fallback"`
	Primary      EngineHealth `json:"primary"`
	FallbackUses int64        `json:"fallback_uses"`
}

// Health reports primary reachability and the routing counters. The fallback
// is in-process and therefore always healthy.
func (s *Service) Health(ctx context.Context) *HealthReport {
	snap := s.proxy.Stats()
	probe := s.proxy.Probe(ctx)

	status := "unconfigured"
	switch {
	case probe.Configured && probe.Reachable:
		status = "healthy"
	case probe.Configured:
		status = "unreachable"
	}

	return &HealthReport{
		Fallback: EngineHealth{Status: "healthy"},
		Primary: EngineHealth{
			Status:    status,
			Successes: snap.PrimarySuccesses,
			Failures:  snap.PrimaryFailures,
		},
		FallbackUses: snap.FallbackUses,
	}
}

func (s *Service) validateShortlist(req ShortlistRequest) (shortlist.Method, shortlist.Options, error) {
	method, err := shortlist.ParseMethod(req.Method)
	if err != nil {
		return "", shortlist.Options{}, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	if req.TargetSize <= 0 && (req.SelectionPercentage <= 0 || req.SelectionPercentage > 1) {
		return "", shortlist.Options{}, fmt.Errorf("%w: selection percentage %v outside (0,1]", ErrConfiguration, req.SelectionPercentage)
	}
	if req.DisparateImpactThreshold < 0 || req.DisparateImpactThreshold > 1 {
		return "", shortlist.Options{}, fmt.Errorf("%w: disparate impact threshold %v outside [0,1]", ErrConfiguration, req.DisparateImpactThreshold)
	}
	if req.Pool == nil {
		return "", shortlist.Options{}, fmt.Errorf("%w: candidate pool is required", ErrConfiguration)
	}
	if req.Pool.Len() > 0 && !req.Pool.HasAttribute(req.Attribute) {
		return "", shortlist.Options{}, fmt.Errorf("%w: attribute %q is absent from every candidate", ErrConfiguration, req.Attribute)
	}

	return method, shortlist.Options{
		Attribute:                req.Attribute,
		SelectionPercentage:      req.SelectionPercentage,
		TargetSize:               req.TargetSize,
		DisparateImpactThreshold: req.DisparateImpactThreshold,
	}, nil
}

// predictionsOf rebuilds the binary selected vector in pool order from the
// strategy decisions.
func predictionsOf(res *shortlist.Result) []int {
	out := make([]int, len(res.Decisions))
	for i, d := range res.Decisions {
		if d.Selected {
			out[i] = 1
		}
	}
	return out
}

func sensitiveOf(pool *candidate.Pool, attribute string) []string {
	out := make([]string, pool.Len())
	for i, c := range pool.Items {
		out[i] = c.Attribute(attribute)
	}
	return out
}

func scoresByGroup(pool *candidate.Pool, attribute string) map[string][]float64 {
	out := make(map[string][]float64)
	for _, c := range pool.Items {
		g := c.Attribute(attribute)
		out[g] = append(out[g], c.OverallScore)
	}
	return out
}
