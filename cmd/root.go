// Package cmd defines and implements the CLI commands for the freebie-watch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/api"
	"github.com/JakeFAU/freebie-watch/internal/app"
	"github.com/JakeFAU/freebie-watch/internal/config"
	"github.com/JakeFAU/freebie-watch/internal/logging"
	"github.com/JakeFAU/freebie-watch/internal/server"
	pkgconfig "github.com/JakeFAU/freebie-watch/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	Checker() api.Checker
	Serve(ctx context.Context) error
}

// service adapts the container to App.
type service struct {
	*app.App
}

func (r service) Checker() api.Checker { return r.Bot() }

func (r service) Serve(ctx context.Context) error {
	srv, err := server.Build(r.App)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return service{App: a}, nil
}

// newRootCmd creates and configures the root command. The returned func
// closes the application the command built, if any; it runs after Execute
// whether or not the subcommand failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		built   App
	)
	cmd := &cobra.Command{
		Use:   "freebie-watch",
		Short: "Watches free game catalogs and announces new items to Telegram.",
		Long: `freebie-watch polls a free game catalog and the Epic Games Store
promotions, remembers what it has already seen, and announces new items to a
Telegram chat. It also answers chat commands and exposes a small status API.`,
		SilenceUsage: true,

		// Builds the application after config is loaded but before the
		// subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := pkgconfig.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			built = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, /etc/freebie-watch/, $HOME/.freebie-watch)")

	cmd.AddCommand(newServeCmd(), newCheckCmd(), newListingsCmd(), newPromotionsCmd())
	closeApp := func() {
		if built != nil {
			built.Close()
			built = nil
		}
	}
	return cmd, closeApp
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	root, closeApp := newRootCmd()
	err := root.ExecuteContext(context.Background())
	closeApp()
	if err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
