package cli

import (
	"context"
	"fmt"

	"finreg-audit/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	applicationName             = "finreg-audit"
	applicationShortDescription = "Evidence-based regulatory compliance audits"
	applicationLongDescription  = "finreg-audit indexes an audit corpus, evaluates a regulatory catalog field by field " +
		"with a language model and writes checkpoints and a JSON report."
)

// Application wires the cobra root command, configuration and structured logger
type Application struct {
	rootCommand   *cobra.Command
	loggerFactory *config.LoggerFactory
	logger        *zap.Logger
	cfg           *config.Config

	configFilePath string
	logLevel       string
	logFormat      string
}

// NewApplication assembles the CLI
func NewApplication() *Application {
	app := &Application{
		loggerFactory: config.NewLoggerFactory(),
		logger:        zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           applicationName,
		Short:         applicationShortDescription,
		Long:          applicationLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd)
		},
	}
	root.SetContext(context.Background())
	root.PersistentFlags().StringVar(&app.configFilePath, "config", "", "Optional path to a YAML configuration file.")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Override the configured log level.")
	root.PersistentFlags().StringVar(&app.logFormat, "log-format", "", "Override the configured log format (structured or console).")

	root.AddCommand(app.newRunCommand())
	root.AddCommand(app.newIndexCommand())
	root.AddCommand(app.newServeCommand())

	app.rootCommand = root
	return app
}

// Execute runs the CLI with the given arguments
func (app *Application) Execute(ctx context.Context, args []string) error {
	app.rootCommand.SetArgs(args)
	defer func() { _ = app.logger.Sync() }()
	return app.rootCommand.ExecuteContext(ctx)
}

func (app *Application) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(app.configFilePath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	if app.logLevel != "" {
		cfg.Log.Level = config.LogLevel(app.logLevel)
	}
	if app.logFormat != "" {
		cfg.Log.Format = config.LogFormat(app.logFormat)
	}

	logger, err := app.loggerFactory.CreateLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("unable to create logger: %w", err)
	}
	app.cfg = cfg
	app.logger = logger
	app.logger.Debug("configuration initialized",
		zap.String("command_name", cmd.Name()),
		zap.String("log_level", string(cfg.Log.Level)),
		zap.String("index_backend", string(cfg.Index.Backend)))
	return nil
}
