package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"finreg-audit/config"
	"finreg-audit/ingestion"
	"finreg-audit/llm"
	"finreg-audit/models"
	"finreg-audit/repository"
	"finreg-audit/service"
	"finreg-audit/storage"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const reportPrefix = "reports"

// openChunkStore opens the configured vector index backend
func (app *Application) openChunkStore(ctx context.Context) (service.ChunkStore, func(), error) {
	cfg := app.cfg.Index
	switch cfg.Backend {
	case config.IndexBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping Postgres: %w", err)
		}
		if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			app.logger.Warn("failed to create pgvector extension", zap.Error(err))
		}
		app.logger.Info("Postgres connection established", zap.Int("dimensions", cfg.Dimensions))
		return repository.NewEvidenceChunkRepository(pool, cfg.Dimensions), pool.Close, nil
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create index directory: %w", err)
			}
		}
		store, err := repository.NewSQLiteChunkStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite index: %w", err)
		}
		app.logger.Info("SQLite index opened", zap.String("path", cfg.SQLitePath))
		return store, func() { _ = store.Close() }, nil
	}
}

func (app *Application) openGemini(ctx context.Context) (*genai.Client, error) {
	client, err := llm.NewClient(ctx, app.cfg.Gemini.APIKey)
	if err != nil {
		return nil, err
	}
	app.logger.Info("Gemini client initialized", zap.String("model", app.cfg.Gemini.Model))
	return client, nil
}

func (app *Application) newIngestor() *ingestion.Ingestor {
	return ingestion.NewIngestor(
		ingestion.IngestWithChunking(app.cfg.Ingestion.ChunkSize, app.cfg.Ingestion.ChunkOverlap),
		ingestion.IngestWithLogger(app.logger.Named("ingestion")),
	)
}

// ingestAndIndex loads the corpus below dir and replaces the indexed corpus with it
func (app *Application) ingestAndIndex(ctx context.Context, dir string, index *service.VectorIndex) (int, error) {
	docs, err := app.newIngestor().IngestDirectory(ctx, dir)
	if err != nil {
		return 0, err
	}
	return index.Rebuild(ctx, docs)
}

// runFactory builds the per-framework audit service shared by the run and serve commands
func (app *Application) runFactory(index *service.VectorIndex, completer service.Completer, store storage.Storage, model string) service.RunFactory {
	return func(fw models.Framework) (*service.RunSetup, error) {
		path := app.cfg.Audit.CatalogFor(fw)
		catalog, err := models.LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		eval := app.cfg.Audit.Evaluation()
		logger := app.logger.Named("audit").With(zap.String("framework", string(fw)))

		auditor := service.NewFieldAuditor(
			service.AuditorWithSearcher(index),
			service.AuditorWithCompleter(completer),
			service.AuditorWithFramework(fw),
			service.AuditorWithConfig(eval),
			service.AuditorWithLogger(logger),
		)
		svc := service.NewAuditService(
			service.AuditWithFieldAuditor(auditor),
			service.AuditWithStorage(store),
			service.AuditWithCorpus(index),
			service.AuditWithReporter(service.NewJSONReporter(store, reportPrefix, eval.EscalationThreshold)),
			service.AuditWithConcurrency(app.cfg.Audit.Concurrency),
			service.AuditWithRunTimeout(app.cfg.Audit.RunTimeout),
			service.AuditWithEscalationThreshold(eval.EscalationThreshold),
			service.AuditWithLogger(logger),
		)
		return &service.RunSetup{Service: svc, Catalog: catalog, Model: model}, nil
	}
}
