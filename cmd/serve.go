package cmd

import (
	"github.com/CMPEQ0/lab-mark-api/handlers"
	"github.com/CMPEQ0/lab-mark-api/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		redis, err := redisService(cmd.Context())
		if err != nil {
			return err
		}
		if redis == nil {
			log.Warn().Msg("Redis is not configured, marks are written without locking and no journal is kept")
		} else {
			defer redis.Client.Close()
		}

		apiHandler := handlers.NewAPIHandler(cfg.Catalog(), spreadsheetOpener(), githubClient(), redis, metrics.New())
		router := handlers.NewRouter(apiHandler)

		addr := cfg.ServerAddress
		if serveAddr != "" {
			addr = serveAddr
		}
		log.Info().Str("addr", addr).Str("courses", cfg.CoursesDir).Msg("Starting server")
		return router.Run(addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	rootCmd.AddCommand(serveCmd)
}
