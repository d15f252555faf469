package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"eou/internal/apihandlers"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the WebSocket inference gateway",
	Long:        `Starts an HTTP server exposing path prediction on /v1/stream and, when enabled, EOU prediction on /v1/eou.`,
	Annotations: map[string]string{"validate": "server"},
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if log.GetLevel() < log.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Logger(), gin.Recovery())
		handler := apihandlers.NewAPIHandler(appInstance)
		handler.RegisterRoutes(router)

		srv := &http.Server{
			Addr:              appInstance.Config.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting EOU gateway on http://%s", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Failed to run API server: %v", err)
				return fmt.Errorf("failed to run API server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down EOU gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		// Hijacked sockets are not covered by srv.Shutdown; they must be gone
		// before the models are released.
		if err := handler.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Live sockets did not close in time: %v", err)
		}
		log.Info("EOU gateway stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides server.port and PORT)")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
