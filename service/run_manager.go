package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finreg-audit/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunSetup is what a run needs for one framework
type RunSetup struct {
	Service *AuditService
	Catalog *models.Catalog
	Model   string
}

// RunFactory wires the audit service for a framework
type RunFactory func(fw models.Framework) (*RunSetup, error)

// RunManager tracks asynchronous audit runs in memory
type RunManager struct {
	factory    RunFactory
	escalation float64
	logger     *zap.Logger

	mu   sync.RWMutex
	runs map[uuid.UUID]*models.AuditRun
	wg   sync.WaitGroup
}

// NewRunManager creates a run manager
func NewRunManager(factory RunFactory, escalation float64, logger *zap.Logger) *RunManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunManager{
		factory:    factory,
		escalation: escalation,
		logger:     logger,
		runs:       make(map[uuid.UUID]*models.AuditRun),
	}
}

// Start validates the request, registers a pending run and returns immediately
func (m *RunManager) Start(req models.AuditRunRequest) (*models.AuditRun, error) {
	fw, err := models.ParseFramework(string(req.Framework))
	if err != nil {
		return nil, err
	}
	req.Framework = fw

	setup, err := m.factory(fw)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare audit run: %w", err)
	}
	sections := setup.Catalog.FilterSections(req.SectionIDs)
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoSections, req.SectionIDs)
	}
	if err := setup.Service.CheckCorpus(context.Background()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &models.AuditRun{
		ID:          uuid.New(),
		Request:     req,
		Status:      models.RunStatusPending,
		FieldsTotal: models.FieldCount(sections),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	out := m.snapshot(run)
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.process(context.Background(), out.ID, req, setup)
	}()

	return out, nil
}

// Get returns a copy of the run
func (m *RunManager) Get(id uuid.UUID) (*models.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return m.snapshot(run), nil
}

// Summary computes the report summary of a finished run
func (m *RunManager) Summary(run *models.AuditRun) Summary {
	return Summarize(ReportBundle{
		Meta: ReportMeta{
			RunID:       run.ID.String(),
			Institution: run.Request.Institution,
			Examiner:    run.Request.Examiner,
			Framework:   run.Request.Framework,
			GeneratedAt: run.UpdatedAt,
		},
		Sections: run.Sections,
	}, m.escalation)
}

// Wait blocks until every started run has finished
func (m *RunManager) Wait() {
	m.wg.Wait()
}

func (m *RunManager) process(ctx context.Context, id uuid.UUID, req models.AuditRunRequest, setup *RunSetup) {
	m.update(id, func(r *models.AuditRun) {
		r.Status = models.RunStatusInProgress
	})

	res, err := setup.Service.Run(ctx, RunInput{
		RunID:      id.String(),
		Catalog:    setup.Catalog,
		SectionIDs: req.SectionIDs,
		Meta: ReportMeta{
			Institution: req.Institution,
			Examiner:    req.Examiner,
			Model:       setup.Model,
		},
	}, &runProgress{manager: m, id: id})
	if err != nil {
		m.logger.Error("audit run failed", zap.String("run_id", id.String()), zap.Error(err))
		msg := err.Error()
		m.update(id, func(r *models.AuditRun) {
			r.Status = models.RunStatusFailed
			r.ErrorMessage = &msg
			if res != nil {
				r.Sections = res.Sections
			}
		})
		return
	}

	m.update(id, func(r *models.AuditRun) {
		now := time.Now().UTC()
		r.Status = models.RunStatusCompleted
		r.Sections = res.Sections
		r.Reports = res.Reports
		r.CurrentSection = nil
		r.CompletedAt = &now
	})
}

func (m *RunManager) update(id uuid.UUID, fn func(*models.AuditRun)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		fn(run)
		run.UpdatedAt = time.Now().UTC()
	}
}

// snapshot copies run so callers never share slices with the worker; callers hold the lock or own run
func (m *RunManager) snapshot(run *models.AuditRun) *models.AuditRun {
	cp := *run
	cp.Sections = append([]models.SectionResult(nil), run.Sections...)
	if run.Reports != nil {
		cp.Reports = make(map[string]string, len(run.Reports))
		for k, v := range run.Reports {
			cp.Reports[k] = v
		}
	}
	return &cp
}

type runProgress struct {
	manager *RunManager
	id      uuid.UUID
}

func (p *runProgress) FieldDone(sectionID string, _ models.Finding, done, _ int) {
	p.manager.update(p.id, func(r *models.AuditRun) {
		current := sectionID
		r.CurrentSection = &current
		r.FieldsDone = done
	})
}

func (p *runProgress) SectionDone(res models.SectionResult) {
	p.manager.update(p.id, func(r *models.AuditRun) {
		r.Sections = append(r.Sections, res)
	})
}
