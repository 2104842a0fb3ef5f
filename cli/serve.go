package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finreg-audit/handlers"
	"finreg-audit/llm"
	"finreg-audit/service"
	"finreg-audit/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func (app *Application) newServeCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				app.cfg.Server.Port = port
			}
			return app.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (defaults to server.port).")
	return cmd
}

func (app *Application) serve(ctx context.Context) error {
	store, err := storage.NewStorage(app.cfg.Storage)
	if err != nil {
		return err
	}
	app.logger.Info("storage initialized", zap.String("type", string(app.cfg.Storage.Type)))

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
	completer := llm.NewGeminiCompleter(client, app.cfg.Gemini.Model)
	runs := service.NewRunManager(
		app.runFactory(index, completer, store, completer.Model()),
		app.cfg.Audit.EscalationThreshold,
		app.logger.Named("runs"),
	)

	r := newRouter(handlers.NewAuditHandler(runs, store))
	srv := &http.Server{
		Addr:    ":" + app.cfg.Server.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server starting", zap.String("port", app.cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	runs.Wait()
	return nil
}

func newRouter(audits *handlers.AuditHandler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	audits.Register(api)
	return r
}
