package cli

import (
	"fmt"
	"io"
	"time"

	"finreg-audit/llm"
	"finreg-audit/models"
	"finreg-audit/service"
	"finreg-audit/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	input       string
	framework   string
	institution string
	examiner    string
	catalog     string
	sections    []string
	topK        int
	model       string
	output      string
	concurrency int
	runTimeout  time.Duration
	skipIndex   bool
}

func (app *Application) newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest a corpus and audit it against a catalog",
		Example: "  finreg-audit run --input ./corpus --framework gwg --institution \"Musterbank AG\"\n" +
			"  finreg-audit run --input ./corpus --framework dora --sections S01,S02 --concurrency 4",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.applyRunFlags(cmd, opts)
			return app.runAudit(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "Corpus directory with pdfs/, excel/, interviews/, screenshots/, logs/.")
	f.StringVar(&opts.framework, "framework", "", "Regulatory framework: gwg, dora, marisk or wphg.")
	f.StringVar(&opts.institution, "institution", "", "Name of the audited institution.")
	f.StringVar(&opts.examiner, "examiner", "", "Examiner label for the report.")
	f.StringVar(&opts.catalog, "catalog", "", "Catalog file overriding the framework default.")
	f.StringSliceVar(&opts.sections, "sections", nil, "Only audit these section ids.")
	f.IntVar(&opts.topK, "top-k", 0, "Chunks retrieved per audit field.")
	f.StringVar(&opts.model, "model", "", "Gemini model used for judgments.")
	f.StringVar(&opts.output, "output", "", "Directory for checkpoints and reports (local storage).")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Audit fields evaluated in parallel.")
	f.DurationVar(&opts.runTimeout, "run-timeout", 0, "Stop scheduling new fields after this duration.")
	f.BoolVar(&opts.skipIndex, "skip-index", false, "Reuse the existing index instead of ingesting --input.")
	return cmd
}

// applyRunFlags overlays explicitly set flags on the loaded configuration
func (app *Application) applyRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	a := &app.cfg.Audit
	if f.Changed("framework") {
		a.Framework = opts.framework
	}
	if f.Changed("institution") {
		a.Institution = opts.institution
	}
	if f.Changed("examiner") {
		a.Examiner = opts.examiner
	}
	if f.Changed("catalog") {
		a.CatalogPath = opts.catalog
	}
	if f.Changed("top-k") {
		a.TopK = opts.topK
	}
	if f.Changed("concurrency") {
		a.Concurrency = opts.concurrency
	}
	if f.Changed("run-timeout") {
		a.RunTimeout = opts.runTimeout
	}
	if f.Changed("model") {
		app.cfg.Gemini.Model = opts.model
	}
	if f.Changed("output") {
		app.cfg.Storage.Type = storage.StorageTypeLocal
		app.cfg.Storage.LocalPath = opts.output
	}
}

func (app *Application) runAudit(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	if err := app.cfg.Validate(); err != nil {
		return err
	}
	fw, err := models.ParseFramework(app.cfg.Audit.Framework)
	if err != nil {
		return err
	}
	if opts.input == "" && !opts.skipIndex {
		return fmt.Errorf("--input is required unless --skip-index is set")
	}

	store, err := storage.NewStorage(app.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	chunks, closeIndex, err := app.openChunkStore(ctx)
	if err != nil {
		return err
	}
	defer closeIndex()

	client, err := app.openGemini(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	index := service.NewVectorIndex(llm.NewGeminiEmbedder(client, app.cfg.Gemini.EmbeddingModel), chunks, app.logger.Named("index"))
	if !opts.skipIndex {
		n, err := app.ingestAndIndex(ctx, opts.input, index)
		if err != nil {
			return err
		}
		app.logger.Info("index ready", zap.Int("chunks", n))
	}

	completer := llm.NewGeminiCompleter(client, app.cfg.Gemini.Model)
	setup, err := app.runFactory(index, completer, store, completer.Model())(fw)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	res, err := setup.Service.Run(ctx, service.RunInput{
		RunID:      runID,
		Catalog:    setup.Catalog,
		SectionIDs: opts.sections,
		Meta: service.ReportMeta{
			Institution:    app.cfg.Audit.Institution,
			Examiner:       app.cfg.Audit.Examiner,
			Model:          setup.Model,
			CatalogVersion: setup.Catalog.Version,
		},
	}, &logProgress{logger: app.logger.Named("progress")})
	if err != nil {
		return err
	}

	summary := service.Summarize(service.ReportBundle{
		Meta:     service.ReportMeta{RunID: runID, Framework: fw, Model: setup.Model, CatalogVersion: setup.Catalog.Version},
		Sections: res.Sections,
	}, app.cfg.Audit.EscalationThreshold)
	printSummary(cmd.OutOrStdout(), runID, fw, summary, res)
	return nil
}

func printSummary(w io.Writer, runID string, fw models.Framework, s service.Summary, res *service.RunResult) {
	fmt.Fprintf(w, "Audit %s completed (%s)\n", runID, fw.Profile().Label)
	fmt.Fprintf(w, "  Overall rating:     %s\n", s.OverallRating)
	fmt.Fprintf(w, "  Fields:             %d (conform %d, partially %d, non-conform %d, not assessable %d)\n",
		s.TotalFields, s.Conform, s.PartiallyConform, s.NonConform, s.NotAssessable)
	fmt.Fprintf(w, "  Review required:    %d\n", s.ReviewRequired)
	fmt.Fprintf(w, "  Average confidence: %.3f\n", s.AverageConfidence)
	if len(s.EscalatedSections) > 0 {
		fmt.Fprintf(w, "  Escalated sections: %v\n", s.EscalatedSections)
	}
	for format, location := range res.Reports {
		fmt.Fprintf(w, "  Report (%s):        %s\n", format, location)
	}
}

// logProgress reports field results the way an examiner follows a run
type logProgress struct {
	logger *zap.Logger
}

func (p *logProgress) FieldDone(sectionID string, f models.Finding, done, total int) {
	p.logger.Info("field done",
		zap.String("section_id", sectionID),
		zap.String("field_id", f.FieldID),
		zap.String("verdict", string(f.Verdict)),
		zap.Float64("confidence", f.Confidence),
		zap.Bool("review_required", f.ReviewRequired),
		zap.Strings("warnings", f.Warnings),
		zap.Int("done", done),
		zap.Int("total", total))
}

func (p *logProgress) SectionDone(res models.SectionResult) {
	p.logger.Info("section done",
		zap.String("section_id", res.ID),
		zap.Int("findings", len(res.Findings)),
		zap.Int("critical", len(res.CriticalFindings())),
		zap.Float64("review_ratio", res.ReviewRatio()))
}
