package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/glefebvre/cinefinder/internal/api"
	"github.com/glefebvre/cinefinder/internal/recommend"
	"github.com/glefebvre/cinefinder/internal/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on api.port (default 8080).

The server stops gracefully on SIGINT or SIGTERM: in-flight requests are given
up to --shutdown-timeout to complete before the database and cache close.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		timeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		if port == 0 {
			port = a.cfg.API.Port
		}

		handler := shutdown.New(timeout, a.log)
		handler.Register("services", func(ctx context.Context) error {
			return a.Close()
		})

		server := api.NewServer(api.Deps{
			Catalog:        a.catalog,
			Enricher:       a.enricher,
			Search:         a.search,
			Sessions:       recommend.NewSessionStore(a.engine, recommend.DefaultSessionTTL),
			Saved:          a.saved,
			DB:             a.db,
			Logger:         a.log,
			CORSOrigins:    a.cfg.API.CORSOrigins,
			MaxConcurrency: a.cfg.Search.MaxConcurrency,
		})
		handler.Register("http", server.Shutdown)

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.Run(port)
			handler.Trigger()
		}()

		if err := handler.Wait(); err != nil {
			return err
		}
		select {
		case err := <-serveErr:
			return err
		default:
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "maximum time to drain requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}
