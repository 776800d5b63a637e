package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpserver "github.com/eugenetaranov/usbshare/internal/http"
)

// serveCmd runs the REST API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the device API over HTTP",
	Long: `Expose the inventory through a REST API.

Endpoints:
  GET    /healthz
  GET    /api/v1/devices
  GET    /api/v1/devices/{name}
  PUT    /api/v1/devices/{name}/share
  DELETE /api/v1/devices/{name}/share

Examples:
  usbshare serve --listen :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (default :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              a.settings.Listen,
		Handler:           httpserver.NewServer(a.fleet),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Int("devices", len(a.fleet.Names())).Msg("serving device API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
