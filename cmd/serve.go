package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/booksnap/booksnap/internal/handlers"
	"github.com/booksnap/booksnap/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the scanning interface",
		Long: `Starts the BookSnap web interface and JSON API.

Routes:
  POST   /api/scan          upload a photo (multipart "file") or {"image_url": ...}
  GET    /api/scans         list scan sessions
  GET    /api/scans/{id}    one scan session
  DELETE /api/scans/{id}    forget a scan session
  POST   /api/scans/{id}/reject  mark the cache entry that answered a scan as wrong
  POST   /api/confirm       confirm a scan into the recognition cache
  GET    /api/stats         scan and cache statistics`,
		Example: `  # Start server on the configured port (8888 by default)
  booksnap serve

  # Start server on custom port
  booksnap serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.Server.Port
			}

			p, err := pipeline.New(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer p.Close()

			handler := handlers.New(p.Scanner, p.Cache, handlers.Options{
				UploadsDir:     cfg.Server.UploadsDir,
				StaticDir:      cfg.Server.StaticDir,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
			})

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/scan", handler.HandleScan)
			mux.HandleFunc("/api/scans", handler.HandleScans)
			mux.HandleFunc("/api/scans/", handler.HandleScanDetail)
			mux.HandleFunc("/api/confirm", handler.HandleConfirm)
			mux.HandleFunc("/api/stats", handler.HandleStats)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("BookSnap interface available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (defaults to server.port)")

	return cmd
}
