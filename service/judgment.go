package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finreg-audit/models"

	"go.uber.org/zap"
)

// JudgmentRequester asks the language model to judge one field against its evidence
type JudgmentRequester struct {
	completer    Completer
	systemPrompt string
	temperature  float32
	maxTokens    int
	retries      int
	backoff      time.Duration
	logger       *zap.Logger
}

// NewJudgmentRequester creates a requester for the given framework
func NewJudgmentRequester(completer Completer, fw models.Framework, cfg EvaluationConfig, logger *zap.Logger) *JudgmentRequester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JudgmentRequester{
		completer:    completer,
		systemPrompt: SystemPrompt(fw),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
		retries:      cfg.ModelRetries,
		backoff:      cfg.RetryBackoff,
		logger:       logger,
	}
}

// Request returns the model's judgment. It never fails: completion and parse errors
// come back as a not_assessable judgment with self-confidence 0 and the error in the justification.
func (r *JudgmentRequester) Request(ctx context.Context, field models.AuditField, evidence string) models.Judgment {
	req := CompletionRequest{
		System:          r.systemPrompt,
		User:            UserPrompt(field, evidence),
		Temperature:     r.temperature,
		MaxOutputTokens: r.maxTokens,
	}

	raw, err := r.complete(ctx, req)
	if err != nil {
		r.logger.Warn("model call failed", zap.String("field_id", field.ID), zap.Error(err))
		return degradedJudgment(fmt.Sprintf("Model evaluation failed: %v", err))
	}

	judgment, err := DecodeJudgment(raw)
	if err != nil {
		r.logger.Warn("model response not parseable", zap.String("field_id", field.ID), zap.Error(err))
		return degradedJudgment(fmt.Sprintf("Model response could not be parsed as JSON: %v", err))
	}
	return judgment
}

// complete retries transport failures and empty answers with exponential backoff
func (r *JudgmentRequester) complete(ctx context.Context, req CompletionRequest) (string, error) {
	attempts := r.retries + 1
	backoff := r.backoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		raw, err := r.completer.Complete(ctx, req)
		if err == nil && strings.TrimSpace(raw) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	if attempts > 1 {
		return "", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
	}
	return "", lastErr
}

func degradedJudgment(reason string) models.Judgment {
	zero := 0.0
	return models.Judgment{
		Verdict:         string(models.VerdictNotAssessable),
		Justification:   reason,
		CitedExcerpts:   []string{},
		Recommendations: []string{},
		Sources:         []string{},
		SelfConfidence:  &zero,
	}
}
