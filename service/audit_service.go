package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finreg-audit/models"
	"finreg-audit/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrNoSections is returned when the section filter matches nothing in the catalog
var ErrNoSections = errors.New("no catalog sections selected")

const deadlineWarning = "run deadline reached: field was not evaluated"

// AuditService evaluates a catalog section by section and hands the result to a reporter
type AuditService struct {
	auditor     *FieldAuditor
	aggregator  *SectionAggregator
	store       storage.Storage
	reporter    Reporter
	corpus      CorpusCounter
	concurrency int
	runTimeout  time.Duration
	logger      *zap.Logger
}

// AuditServiceOption is a functional option for AuditService
type AuditServiceOption func(*AuditService)

// AuditWithFieldAuditor sets the per-field pipeline
func AuditWithFieldAuditor(a *FieldAuditor) AuditServiceOption {
	return func(s *AuditService) {
		s.auditor = a
	}
}

// AuditWithStorage sets the storage used for checkpoints
func AuditWithStorage(store storage.Storage) AuditServiceOption {
	return func(s *AuditService) {
		s.store = store
	}
}

// AuditWithReporter sets the reporting collaborator
func AuditWithReporter(r Reporter) AuditServiceOption {
	return func(s *AuditService) {
		s.reporter = r
	}
}

// AuditWithCorpus makes runs fail with ErrEmptyCorpus while counter holds no chunks
func AuditWithCorpus(counter CorpusCounter) AuditServiceOption {
	return func(s *AuditService) {
		s.corpus = counter
	}
}

// AuditWithConcurrency caps the number of fields evaluated at once
func AuditWithConcurrency(n int) AuditServiceOption {
	return func(s *AuditService) {
		s.concurrency = n
	}
}

// AuditWithRunTimeout stops scheduling new fields once d has elapsed
func AuditWithRunTimeout(d time.Duration) AuditServiceOption {
	return func(s *AuditService) {
		s.runTimeout = d
	}
}

// AuditWithEscalationThreshold sets the section review ratio that triggers escalation
func AuditWithEscalationThreshold(t float64) AuditServiceOption {
	return func(s *AuditService) {
		s.aggregator = NewSectionAggregator(t, s.logger)
	}
}

// AuditWithLogger sets the logger
func AuditWithLogger(l *zap.Logger) AuditServiceOption {
	return func(s *AuditService) {
		s.logger = l
	}
}

// NewAuditService creates a new audit service
func NewAuditService(opts ...AuditServiceOption) *AuditService {
	s := &AuditService{
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.aggregator == nil {
		s.aggregator = NewSectionAggregator(DefaultEvaluationConfig().EscalationThreshold, s.logger)
	} else {
		s.aggregator.logger = s.logger
	}
	return s
}

// CheckCorpus returns ErrEmptyCorpus when a corpus is configured and holds no chunks
func (s *AuditService) CheckCorpus(ctx context.Context) error {
	if s.corpus == nil {
		return nil
	}
	return CheckCorpus(ctx, s.corpus)
}

// RunInput describes one audit run
type RunInput struct {
	RunID      string
	Catalog    *models.Catalog
	SectionIDs []string
	Meta       ReportMeta
}

// RunResult is the outcome of a completed run
type RunResult struct {
	Sections      []models.SectionResult
	Reports       map[string]string
	CheckpointKey string
}

// Progress is notified after every field and every section. Calls are serialized.
type Progress interface {
	FieldDone(sectionID string, finding models.Finding, done, total int)
	SectionDone(result models.SectionResult)
}

// Run evaluates every selected section in catalog order. Fields inside a section run on a
// bounded pool; findings keep catalog order. A retrieval failure aborts the run; model and
// parse failures are folded into findings.
func (s *AuditService) Run(ctx context.Context, in RunInput, progress Progress) (*RunResult, error) {
	if s.auditor == nil {
		return nil, ErrAuditorNotSet
	}
	if in.Catalog == nil {
		return nil, ErrCatalogNotSet
	}
	sections := in.Catalog.FilterSections(in.SectionIDs)
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoSections, in.SectionIDs)
	}
	if err := s.CheckCorpus(ctx); err != nil {
		return nil, err
	}

	schedCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		schedCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	checkpoints := NewCheckpointWriter(s.store, in.RunID, s.logger)
	defer checkpoints.Close()

	tracker := &progressTracker{progress: progress, total: models.FieldCount(sections)}
	log := s.logger.With(zap.String("run_id", in.RunID))
	log.Info("audit run started",
		zap.String("framework", string(s.auditor.Framework())),
		zap.Int("sections", len(sections)),
		zap.Int("fields", tracker.total),
		zap.Int("concurrency", s.concurrency))

	results := make([]models.SectionResult, 0, len(sections))
	for _, section := range sections {
		findings, err := s.runSection(ctx, schedCtx, section, tracker)
		if err != nil {
			log.Error("audit run aborted", zap.String("section_id", section.ID), zap.Error(err))
			return nil, err
		}
		res := s.aggregator.Aggregate(section, findings)
		results = append(results, res)
		tracker.sectionDone(res)
		checkpoints.Submit(results)
	}

	out := &RunResult{Sections: results, CheckpointKey: checkpoints.Key()}
	if s.reporter != nil {
		in.Meta.RunID = in.RunID
		in.Meta.Framework = s.auditor.Framework()
		in.Meta.FrameworkLabel = s.auditor.Framework().Profile().Label
		if in.Meta.CatalogVersion == "" {
			in.Meta.CatalogVersion = in.Catalog.Version
		}
		reports, err := s.reporter.Publish(ctx, ReportBundle{Meta: in.Meta, Sections: results})
		if err != nil {
			return out, fmt.Errorf("failed to publish report: %w", err)
		}
		out.Reports = reports
	}
	log.Info("audit run completed", zap.Int("sections", len(results)))
	return out, nil
}

// runSection evaluates the fields of one section. Scheduling stops once schedCtx is done;
// fields already started finish on a context that ignores the run deadline.
func (s *AuditService) runSection(ctx, schedCtx context.Context, section models.Section, tracker *progressTracker) ([]models.Finding, error) {
	findings := make([]models.Finding, len(section.Fields))
	scheduled := make([]bool, len(section.Fields))

	g, gctx := errgroup.WithContext(schedCtx)
	sem := semaphore.NewWeighted(int64(s.concurrency))
	fieldCtx := context.WithoutCancel(ctx)

	for i, f := range section.Fields {
		if gctx.Err() != nil {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		scheduled[i] = true
		field := f.WithLegalBasis(mergeLegalBasis(section.LegalBasis, f.LegalBasis))
		g.Go(func() error {
			defer sem.Release(1)
			finding, err := s.auditor.Audit(fieldCtx, field)
			if err != nil {
				return err
			}
			findings[i] = finding
			tracker.fieldDone(section.ID, finding)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, ok := range scheduled {
		if ok {
			continue
		}
		f := section.Fields[i]
		s.logger.Warn("field skipped at run deadline", zap.String("section_id", section.ID), zap.String("field_id", f.ID))
		findings[i] = deadlineFinding(f)
		tracker.fieldDone(section.ID, findings[i])
	}
	return findings, nil
}

// mergeLegalBasis puts section references first and appends field-specific ones not yet present
func mergeLegalBasis(section, field []string) []string {
	out := make([]string, 0, len(section)+len(field))
	seen := make(map[string]bool, len(section)+len(field))
	for _, refs := range [][]string{section, field} {
		for _, r := range refs {
			if seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func deadlineFinding(field models.AuditField) models.Finding {
	return models.Finding{
		FieldID:         field.ID,
		Question:        field.Question,
		Verdict:         models.VerdictNotAssessable,
		Severity:        field.Severity,
		Justification:   "The audit run reached its deadline before this field was evaluated.",
		CitedExcerpts:   []string{},
		Recommendations: []string{},
		Sources:         []string{},
		Confidence:      0,
		ReviewRequired:  true,
		Warnings:        []string{deadlineWarning},
	}
}

type progressTracker struct {
	mu       sync.Mutex
	progress Progress
	done     int
	total    int
}

func (t *progressTracker) fieldDone(sectionID string, f models.Finding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	if t.progress != nil {
		t.progress.FieldDone(sectionID, f, t.done, t.total)
	}
}

func (t *progressTracker) sectionDone(res models.SectionResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress != nil {
		t.progress.SectionDone(res)
	}
}
