package service

import (
	"context"

	"finreg-audit/models"

	"go.uber.org/zap"
)

// FieldAuditor runs the per-field pipeline: retrieve, gate, format, judge, validate, fuse, decide
type FieldAuditor struct {
	searcher  Searcher
	completer Completer
	framework models.Framework
	cfg       EvaluationConfig
	logger    *zap.Logger

	retriever *EvidenceRetriever
	gate      *QualityGate
	requester *JudgmentRequester
	validator *StructuralValidator
	policy    *DecisionPolicy
}

// FieldAuditorOption is a functional option for FieldAuditor
type FieldAuditorOption func(*FieldAuditor)

// AuditorWithSearcher sets the evidence index
func AuditorWithSearcher(s Searcher) FieldAuditorOption {
	return func(a *FieldAuditor) {
		a.searcher = s
	}
}

// AuditorWithCompleter sets the language model
func AuditorWithCompleter(c Completer) FieldAuditorOption {
	return func(a *FieldAuditor) {
		a.completer = c
	}
}

// AuditorWithFramework sets the regulatory framework used for prompts
func AuditorWithFramework(fw models.Framework) FieldAuditorOption {
	return func(a *FieldAuditor) {
		a.framework = fw
	}
}

// AuditorWithConfig sets thresholds and model budgets
func AuditorWithConfig(cfg EvaluationConfig) FieldAuditorOption {
	return func(a *FieldAuditor) {
		a.cfg = cfg
	}
}

// AuditorWithLogger sets the logger
func AuditorWithLogger(l *zap.Logger) FieldAuditorOption {
	return func(a *FieldAuditor) {
		a.logger = l
	}
}

// NewFieldAuditor creates a field auditor; unset options fall back to the audit defaults
func NewFieldAuditor(opts ...FieldAuditorOption) *FieldAuditor {
	a := &FieldAuditor{
		framework: models.FrameworkGwG,
		cfg:       DefaultEvaluationConfig(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.retriever = NewEvidenceRetriever(a.searcher, a.cfg.TopK)
	a.gate = NewQualityGate(a.cfg.MinRetrievalScore)
	a.requester = NewJudgmentRequester(a.completer, a.framework, a.cfg, a.logger)
	a.validator = NewStructuralValidator(a.framework)
	a.policy = NewDecisionPolicy(a.cfg.AutoRejectThreshold, a.cfg.ReviewThreshold)
	return a
}

// Framework returns the framework the auditor prompts for
func (a *FieldAuditor) Framework() models.Framework {
	return a.framework
}

// Audit evaluates one field. The only error is a retrieval failure; every model or parse
// problem is folded into the returned Finding.
func (a *FieldAuditor) Audit(ctx context.Context, field models.AuditField) (models.Finding, error) {
	d, err := a.Evaluate(ctx, field)
	if err != nil {
		return models.Finding{}, err
	}
	return d.Finding, nil
}

// Evaluate is Audit with the decision state exposed
func (a *FieldAuditor) Evaluate(ctx context.Context, field models.AuditField) (Decision, error) {
	if a.searcher == nil {
		return Decision{}, ErrSearcherNotSet
	}
	if a.completer == nil {
		return Decision{}, ErrCompleterNotSet
	}
	log := a.logger.With(zap.String("field_id", field.ID))

	chunks, err := a.retriever.Retrieve(ctx, field)
	if err != nil {
		return Decision{}, err
	}

	gate := a.gate.Apply(chunks)
	if !gate.Passed() {
		log.Info("quality gate rejected field",
			zap.Float64("best_score", gate.BestScore),
			zap.Float64("threshold", gate.Threshold))
		return Decision{State: StateGateReject, Finding: RejectionFinding(field, gate)}, nil
	}

	sources := make(map[string]struct{}, len(gate.Good))
	types := make(map[models.DocumentType]struct{}, len(gate.Good))
	sourceList := make([]string, 0, len(gate.Good))
	for _, c := range gate.Good {
		src := c.Source
		if src == "" {
			src = "unknown"
		}
		if _, ok := sources[src]; !ok {
			sourceList = append(sourceList, src)
		}
		sources[src] = struct{}{}
		dt := c.DocType
		if dt == "" {
			dt = models.DocTypeUnknown
		}
		types[dt] = struct{}{}
	}

	evidence := FormatEvidence(gate.Good, field, a.cfg.MaxExcerptLen)
	judgment := a.requester.Request(ctx, field, evidence)
	warnings := a.validator.Validate(judgment, sources)

	confidence := ComputeConfidence(ConfidenceInputs{
		RetrievalScores:  gate.Scores(),
		ExpectedEvidence: field.ExpectedEvidence,
		FoundSources:     sourceList,
		AllowedTypes:     field.AllowedTypes(),
		FoundTypes:       types,
		SelfConfidence:   judgment.SelfConfidenceOr(0.5),
	})

	d := a.policy.Decide(field, judgment, confidence, warnings)
	log.Info("field evaluated",
		zap.String("state", string(d.State)),
		zap.String("verdict", string(d.Finding.Verdict)),
		zap.Float64("confidence", d.Finding.Confidence),
		zap.Bool("review_required", d.Finding.ReviewRequired),
		zap.Int("warnings", len(d.Finding.Warnings)))
	return d, nil
}
