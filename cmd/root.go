package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"eou/internal/app"
	"eou/internal/config"
	"eou/internal/services"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// noAppAnnotation marks commands that run without loading models.
const noAppAnnotation = "no-app"

var rootCmd = &cobra.Command{
	Use:   "eou",
	Short: "Path selection and end-of-utterance inference service",
	Long: `eou serves real-time path selection and end-of-utterance predictions
over WebSocket, and ships local tools to exercise the predictors.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipAppInit(cmd) {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogging(cfg)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cmd.Annotations["validate"] == "server" {
			if err := cfg.ValidateServer(); err != nil {
				return fmt.Errorf("invalid server config: %w", err)
			}
		}

		appInstance, err := app.NewApp(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appInstance, err := GetAppFromContext(cmd.Context()); err == nil {
			appInstance.Close()
		}
	},
}

func skipAppInit(cmd *cobra.Command) bool {
	if cmd.Name() == "help" || cmd.Name() == "completion" || strings.HasPrefix(cmd.Name(), "__complete") {
		return true
	}
	_, ok := cmd.Annotations[noAppAnnotation]
	return ok
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// Helper function to retrieve the app instance from context
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check provider status and show tracked cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}

		fmt.Printf("Path strategy:  %s\n", appInstance.PathService.Strategy())
		if svc := appInstance.EmbeddingService; svc != nil {
			status := svc.Status().String()
			if svc.Status() == services.ProviderStatusActive {
				status = color.GreenString(status)
			} else {
				status = color.RedString(status)
			}
			fmt.Printf("Embedding:      %s (%s, dim %d) %s\n", svc.Name(), svc.ModelName(), svc.Dimension(), status)
		}
		if appInstance.EOUService != nil {
			fmt.Printf("EOU backend:    %s\n", appInstance.EOUService.Backend())
		} else {
			fmt.Printf("EOU backend:    %s\n", color.YellowString("disabled"))
		}

		total, err := appInstance.CostTracker.TotalCost(ctx)
		if err != nil {
			return fmt.Errorf("failed to read tracked cost: %w", err)
		}
		fmt.Printf("Tracked cost:   $%.6f\n", total)
		return nil
	},
}
