package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"finreg-audit/models"
	"finreg-audit/repository"
	"finreg-audit/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// delayedSearcher answers slower for earlier fields so completion order inverts catalog order
type delayedSearcher struct {
	delays map[string]time.Duration
	chunks []models.EvidenceChunk
	err    error

	mu      sync.Mutex
	queries []string
}

func (s *delayedSearcher) Search(ctx context.Context, query string, _ int) ([]models.EvidenceChunk, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	for q, d := range s.delays {
		if strings.HasPrefix(query, q) {
			time.Sleep(d)
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

type recordingProgress struct {
	mu       sync.Mutex
	done     []int
	fields   []string
	sections []string
	total    int
}

func (p *recordingProgress) FieldDone(_ string, f models.Finding, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, done)
	p.fields = append(p.fields, f.FieldID)
	p.total = total
}

func (p *recordingProgress) SectionDone(res models.SectionResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections = append(p.sections, res.ID)
}

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Version: "2024.2",
		Sections: []models.Section{
			{
				ID:         "S01",
				Title:      "Risk analysis",
				LegalBasis: models.LegalRefs{"§ 5 GwG"},
				Fields: []models.AuditField{
					{ID: "S01-01", Question: "Q1 risk analysis?", Severity: models.SeverityMaterial, LegalBasis: models.LegalRefs{"§ 25h KWG", "§ 5 GwG"}},
					{ID: "S01-02", Question: "Q2 risk factors?", Severity: models.SeveritySignificant},
					{ID: "S01-03", Question: "Q3 update cycle?", Severity: models.SeverityMinor},
				},
			},
			{
				ID:    "S02",
				Title: "Due diligence",
				Fields: []models.AuditField{
					{ID: "S02-01", Question: "Q4 beneficial owners?", Severity: models.SeverityMaterial},
					{ID: "S02-02", Question: "Q5 PEP screening?", Severity: models.SeveritySignificant},
				},
			},
		},
	}
}

func goodChunks() []models.EvidenceChunk {
	return []models.EvidenceChunk{chunk("risikoanalyse_2024.pdf", models.DocTypePDF, 0.9, "approved")}
}

func newService(searcher service.Searcher, completer service.Completer, opts ...service.AuditServiceOption) *service.AuditService {
	auditor := service.NewFieldAuditor(
		service.AuditorWithSearcher(searcher),
		service.AuditorWithCompleter(completer),
		service.AuditorWithConfig(fastConfig(0)),
	)
	return service.NewAuditService(append([]service.AuditServiceOption{service.AuditWithFieldAuditor(auditor)}, opts...)...)
}

func findingIDs(sections []models.SectionResult) []string {
	var ids []string
	for _, s := range sections {
		for _, f := range s.Findings {
			ids = append(ids, f.FieldID)
		}
	}
	return ids
}

func TestAuditServiceKeepsCatalogOrderUnderConcurrency(t *testing.T) {
	searcher := &delayedSearcher{
		chunks: goodChunks(),
		delays: map[string]time.Duration{
			"Q1": 60 * time.Millisecond,
			"Q2": 30 * time.Millisecond,
		},
	}
	progress := &recordingProgress{}
	svc := newService(searcher, &countingCompleter{responses: []string{conformResponse}}, service.AuditWithConcurrency(3))

	res, err := svc.Run(context.Background(), service.RunInput{RunID: "run-1", Catalog: testCatalog()}, progress)
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)
	assert.Equal(t, []string{"S01-01", "S01-02", "S01-03", "S02-01", "S02-02"}, findingIDs(res.Sections))

	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress.done)
	assert.Equal(t, 5, progress.total)
	assert.Equal(t, []string{"S01", "S02"}, progress.sections)
	// S01-03 finishes first inside its section
	assert.Equal(t, "S01-03", progress.fields[0])
}

func TestAuditServiceMergesSectionLegalBasis(t *testing.T) {
	searcher := &delayedSearcher{chunks: goodChunks()}
	catalog := testCatalog()
	svc := newService(searcher, &countingCompleter{responses: []string{conformResponse}})

	_, err := svc.Run(context.Background(), service.RunInput{RunID: "run-2", Catalog: catalog, SectionIDs: []string{"S01"}}, nil)
	require.NoError(t, err)

	require.Len(t, searcher.queries, 3)
	assert.Contains(t, searcher.queries[0], "Legal basis: § 5 GwG, § 25h KWG")
	assert.Contains(t, searcher.queries[1], "Legal basis: § 5 GwG")
	assert.Equal(t, models.LegalRefs{"§ 25h KWG", "§ 5 GwG"}, catalog.Sections[0].Fields[0].LegalBasis)
	assert.Nil(t, catalog.Sections[0].Fields[1].LegalBasis)
}

func TestAuditServiceRunDeadlineStopsScheduling(t *testing.T) {
	searcher := &delayedSearcher{
		chunks: goodChunks(),
		delays: map[string]time.Duration{"Q": 150 * time.Millisecond},
	}
	svc := newService(searcher, &countingCompleter{responses: []string{conformResponse}},
		service.AuditWithConcurrency(1),
		service.AuditWithRunTimeout(20*time.Millisecond))

	res, err := svc.Run(context.Background(), service.RunInput{RunID: "run-3", Catalog: testCatalog()}, nil)
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)

	first := res.Sections[0].Findings[0]
	assert.Equal(t, models.VerdictConform, first.Verdict, "in-flight field completes")

	skipped := append(res.Sections[0].Findings[1:], res.Sections[1].Findings...)
	require.Len(t, skipped, 4)
	for _, f := range skipped {
		assert.Equal(t, models.VerdictNotAssessable, f.Verdict, f.FieldID)
		assert.True(t, f.ReviewRequired)
		assert.Contains(t, f.Warnings, "run deadline reached: field was not evaluated")
	}
	assert.Len(t, searcher.queries, 1)
}

func TestAuditServiceRetrievalFailureAbortsRun(t *testing.T) {
	searcher := &delayedSearcher{err: errors.New("index unavailable")}
	completer := &countingCompleter{responses: []string{conformResponse}}
	svc := newService(searcher, completer, service.AuditWithConcurrency(2))

	res, err := svc.Run(context.Background(), service.RunInput{RunID: "run-4", Catalog: testCatalog()}, nil)
	require.ErrorIs(t, err, service.ErrRetrievalFailed)
	assert.Nil(t, res)
	assert.Zero(t, completer.Calls())
}

func TestAuditServiceRetrievalFailureKeepsCause(t *testing.T) {
	cause := &service.ModelError{Model: "text-embedding-004", Err: errors.New("quota exceeded")}
	svc := newService(&delayedSearcher{err: cause}, &countingCompleter{responses: []string{conformResponse}})

	_, err := svc.Run(context.Background(), service.RunInput{RunID: "run-4b", Catalog: testCatalog()}, nil)
	require.ErrorIs(t, err, service.ErrRetrievalFailed)

	var modelErr *service.ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, "text-embedding-004", modelErr.Model)
	assert.Contains(t, err.Error(), "S01-01")
}

func TestAuditServiceEmptyCorpusFailsRun(t *testing.T) {
	chunks, err := repository.NewSQLiteChunkStore(":memory:")
	require.NoError(t, err)
	defer chunks.Close()

	searcher := &delayedSearcher{chunks: goodChunks()}
	completer := &countingCompleter{responses: []string{conformResponse}}
	store := newMemoryStorage()
	svc := newService(searcher, completer, service.AuditWithCorpus(chunks), service.AuditWithStorage(store))

	res, err := svc.Run(context.Background(), service.RunInput{RunID: "run-empty", Catalog: testCatalog()}, nil)
	require.ErrorIs(t, err, service.ErrEmptyCorpus)
	assert.Nil(t, res)
	assert.Empty(t, searcher.queries)
	assert.Zero(t, completer.Calls())
	assert.Zero(t, store.puts)
}

func TestAuditServiceModelFailureDoesNotAbortRun(t *testing.T) {
	searcher := &delayedSearcher{chunks: goodChunks()}
	completer := &countingCompleter{errs: []error{errors.New("boom")}, responses: []string{conformResponse}}
	svc := newService(searcher, completer)

	res, err := svc.Run(context.Background(), service.RunInput{RunID: "run-5", Catalog: testCatalog(), SectionIDs: []string{"S02"}}, nil)
	require.NoError(t, err)
	findings := res.Sections[0].Findings
	require.Len(t, findings, 2)
	assert.Equal(t, models.VerdictNotAssessable, findings[0].Verdict)
	assert.Contains(t, findings[0].Justification, "boom")
	assert.Equal(t, models.VerdictConform, findings[1].Verdict)
}

func TestAuditServiceValidation(t *testing.T) {
	_, err := service.NewAuditService().Run(context.Background(), service.RunInput{Catalog: testCatalog()}, nil)
	require.ErrorIs(t, err, service.ErrAuditorNotSet)

	svc := newService(&delayedSearcher{}, &countingCompleter{})
	_, err = svc.Run(context.Background(), service.RunInput{}, nil)
	require.ErrorIs(t, err, service.ErrCatalogNotSet)

	_, err = svc.Run(context.Background(), service.RunInput{Catalog: testCatalog(), SectionIDs: []string{"S99"}}, nil)
	require.ErrorIs(t, err, service.ErrNoSections)
}

func TestAuditServiceWritesCheckpointAndReport(t *testing.T) {
	store := newMemoryStorage()
	svc := newService(&delayedSearcher{chunks: goodChunks()}, &countingCompleter{responses: []string{conformResponse}},
		service.AuditWithStorage(store),
		service.AuditWithReporter(service.NewJSONReporter(store, "reports", 0.3)))

	res, err := svc.Run(context.Background(), service.RunInput{
		RunID:   "run-6",
		Catalog: testCatalog(),
		Meta:    service.ReportMeta{Institution: "Musterbank AG", Model: "test-model"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "checkpoints/run-6/checkpoint_latest.json", res.CheckpointKey)

	data, ok := store.object(res.CheckpointKey)
	require.True(t, ok)
	var checkpoint []map[string]any
	require.NoError(t, json.Unmarshal(data, &checkpoint))
	require.Len(t, checkpoint, 2)
	assert.Len(t, checkpoint[1]["befunde"], 2)

	location := res.Reports["json"]
	require.True(t, strings.HasPrefix(location, "mem://reports/gwg_audit_report_"), location)
	report, ok := store.object(strings.TrimPrefix(location, "mem://"))
	require.True(t, ok)

	var decoded struct {
		Meta    service.ReportMeta `json:"meta"`
		Summary service.Summary    `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(report, &decoded))
	assert.Equal(t, "run-6", decoded.Meta.RunID)
	assert.Equal(t, "2024.2", decoded.Meta.CatalogVersion)
	assert.Equal(t, models.FrameworkGwG, decoded.Meta.Framework)
	assert.Equal(t, 5, decoded.Summary.TotalFields)
	assert.Equal(t, service.RatingConform, decoded.Summary.OverallRating)
}

func TestAuditServiceSwallowsCheckpointFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &failingStorage{}
	svc := newService(&delayedSearcher{chunks: goodChunks()}, &countingCompleter{responses: []string{conformResponse}},
		service.AuditWithStorage(store),
		service.AuditWithLogger(zap.New(core)))

	res, err := svc.Run(context.Background(), service.RunInput{RunID: "run-7", Catalog: testCatalog()}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Sections, 2)
	assert.GreaterOrEqual(t, int(store.puts.Load()), 1)
	assert.NotZero(t, logs.FilterMessage("checkpoint write failed").Len())
}
