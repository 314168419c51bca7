package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/engine"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/fairness"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/logger"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Engine asks a Gemini model to compute the fairness metrics. It is one
// implementation of the primary evaluator contract; any failure here routes
// the call to the local calculator like any other primary outage.
type Engine struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewEngine(generator contentGenerator, log *zap.Logger, maxLogLength int) *Engine {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Engine{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", ""),
		maxLogLen: maxLogLength,
	}
}

func (e *Engine) Name() string { return engine.EnginePrimary }

func (e *Engine) Evaluate(ctx context.Context, in *engine.Input) (*engine.Evaluation, error) {
	if in == nil {
		return nil, fmt.Errorf("evaluation input is required")
	}

	inputJSON, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation input: %w", err)
	}

	prompt := buildPrompt(string(inputJSON))

	e.logger.Debug("gemini evaluation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini evaluation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	metrics, err := parseMetrics(raw)
	if err != nil {
		return nil, err
	}

	return &engine.Evaluation{
		Metrics:   metrics,
		Engine:    engine.EnginePrimary,
		Timestamp: time.Now().UTC(),
	}, nil
}

func buildPrompt(inputJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Evaluation input:\n{{INPUT_JSON}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{INPUT_JSON}}", inputJSON)
}

// parseMetrics decodes the model output into the shared metrics structure.
// Anything that does not validate is treated as an engine failure so the
// proxy can fall back instead of shipping half-parsed numbers.
func parseMetrics(raw string) (*fairness.Metrics, error) {
	cleaned := extractJSON(raw)

	var metrics fairness.Metrics
	if err := json.Unmarshal([]byte(cleaned), &metrics); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if !metrics.InsufficientData && len(metrics.Groups) == 0 {
		return nil, fmt.Errorf("gemini response carries no groups")
	}

	return &metrics, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
