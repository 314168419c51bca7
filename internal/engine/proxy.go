package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/utils"
)

const (
	defaultMaxAttempts    = 2
	defaultAttemptTimeout = 5 * time.Second
	defaultProbeTimeout   = 2 * time.Second

	// retryPause is the fixed wait between primary attempts; the attempts
	// themselves are already bounded by the per-attempt timeout.
	retryPause = 250 * time.Millisecond
)

// HealthState holds the process-wide routing counters. Increments are atomic
// but the three counters are not read as one unit: a snapshot taken during a
// call in flight may see one counter already bumped and another not yet.
// These are advisory statistics, so that skew is acceptable. Counters reset
// only at process start.
type HealthState struct {
	primarySuccesses atomic.Int64
	primaryFailures  atomic.Int64
	fallbackUses     atomic.Int64
}

func NewHealthState() *HealthState {
	return &HealthState{}
}

// HealthSnapshot is a point-in-time copy of the counters.
type HealthSnapshot struct {
	PrimarySuccesses int64 `json:"primary_successes"`
	PrimaryFailures  int64 `json:"primary_failures"`
	FallbackUses     int64 `json:"fallback_uses"`
}

func (h *HealthState) Snapshot() HealthSnapshot {
	return HealthSnapshot{
		PrimarySuccesses: h.primarySuccesses.Load(),
		PrimaryFailures:  h.primaryFailures.Load(),
		FallbackUses:     h.fallbackUses.Load(),
	}
}

// pinger is implemented by engines that support a reachability probe.
type pinger interface {
	Ping(ctx context.Context) error
}

// ProxyConfig bounds the primary attempts.
type ProxyConfig struct {
	// MaxAttempts is the total number of primary calls per evaluation,
	// counting the first one. With the default of 2 a failed call is
	// retried once before the fallback takes over.
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// Proxy routes evaluations to the primary engine and falls back to the local
// calculator on any primary failure. The caller never sees a primary failure
// as an error; only the Evaluation's engine metadata tells which side
// answered.
type Proxy struct {
	primary  Engine // nil when unconfigured
	fallback Engine
	cfg      ProxyConfig
	health   *HealthState
	logger   *zap.Logger
}

func NewProxy(primary Engine, fallback Engine, cfg ProxyConfig, health *HealthState, logger *zap.Logger) *Proxy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if health == nil {
		health = NewHealthState()
	}
	return &Proxy{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		health:   health,
		logger:   logger,
	}
}

func (p *Proxy) Evaluate(ctx context.Context, in *Input) (*Evaluation, error) {
	if p.primary != nil {
		if ev := p.tryPrimary(ctx, in); ev != nil {
			return ev, nil
		}
	}

	ev, err := p.fallback.Evaluate(ctx, in)
	if err != nil {
		// Malformed input, not an engine outage. Surfaced as-is.
		return nil, err
	}

	p.health.fallbackUses.Add(1)
	return ev, nil
}

// tryPrimary runs the bounded retry loop. Every failed attempt counts one
// primary failure; a nil return routes the call to the fallback.
func (p *Proxy) tryPrimary(ctx context.Context, in *Input) *Evaluation {
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		ev, err := p.primary.Evaluate(actx, in)
		cancel()

		if err == nil {
			p.health.primarySuccesses.Add(1)
			return ev
		}

		p.health.primaryFailures.Add(1)
		p.logger.Warn("primary engine attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt < p.cfg.MaxAttempts {
			if err := utils.WaitFor(ctx, retryPause); err != nil {
				break
			}
		}
	}

	p.logger.Info("routing evaluation to fallback engine",
		zap.String("reason", "primary attempts exhausted"),
	)
	return nil
}

// ProbeResult reports primary reachability, independent of the routing
// counters.
type ProbeResult struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Error      string `json:"error,omitempty"`
}

// Probe checks the primary engine with a single short-deadline attempt. It
// never touches the health counters.
func (p *Proxy) Probe(ctx context.Context) ProbeResult {
	if p.primary == nil {
		return ProbeResult{}
	}

	pr, ok := p.primary.(pinger)
	if !ok {
		return ProbeResult{Configured: true, Error: "engine does not support probing"}
	}

	pctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	if err := pr.Ping(pctx); err != nil {
		return ProbeResult{Configured: true, Error: err.Error()}
	}
	return ProbeResult{Configured: true, Reachable: true}
}

// Stats exposes the shared counters.
func (p *Proxy) Stats() HealthSnapshot {
	return p.health.Snapshot()
}
