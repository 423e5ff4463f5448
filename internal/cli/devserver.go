package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/spf13/cobra"

	"github.com/lborres/bantay"
	fiberadapter "github.com/lborres/bantay/adapters/fiber"
	"github.com/lborres/bantay/adapters/memory"
	pgxadapter "github.com/lborres/bantay/adapters/pgx"
	"github.com/lborres/bantay/core"
)

func newDevServerCmd(e *env) *cobra.Command {
	var (
		addr       string
		prefix     string
		accessLogs bool
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local auth backend for both identity classes",
		Long: `Serve the community (/auth) and system (/system/auth) endpoints for local
development. Accounts are kept in memory unless server.database_url (or
DATABASE_URL) points at PostgreSQL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = e.cfg.Server.Addr
			}

			dir, closeDir, err := openDirectory(ctx, e.cfg.Server.DatabaseURL, e.logger)
			if err != nil {
				return err
			}
			defer closeDir()

			backend, err := bantay.NewBackend(bantay.BackendConfig{
				Directory: dir,
				Community: e.cfg.SessionConfig(core.ClassCommunity),
				System:    e.cfg.SessionConfig(core.ClassSystem),
				Logger:    e.logger,
			})
			if err != nil {
				return err
			}

			app := fiber.New(fiber.Config{AppName: "bantay devserver"})
			if accessLogs {
				app.Use(logger.New())
			}

			var router fiber.Router = app
			if p := strings.TrimRight(prefix, "/"); p != "" {
				router = app.Group(p)
			}
			if err := fiberadapter.New(router, e.logger).Mount(backend.Accounts()...); err != nil {
				return err
			}

			go func() {
				<-ctx.Done()
				_ = app.Shutdown()
			}()

			e.logger.Info("dev backend listening", "addr", addr, "prefix", prefix)
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s%s\n", addr, prefix)
			return app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().StringVar(&prefix, "prefix", "/api", "path prefix in front of the class prefixes")
	cmd.Flags().BoolVar(&accessLogs, "access-log", false, "log every request")
	return cmd
}

// openDirectory picks PostgreSQL when databaseURL is set, otherwise memory.
func openDirectory(ctx context.Context, databaseURL string, logger *slog.Logger) (core.Directory, func(), error) {
	if databaseURL == "" {
		logger.Warn("no database configured, accounts are kept in memory")
		return memory.NewDirectory(), func() {}, nil
	}

	pool, err := pgxadapter.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	dir := pgxadapter.New(pool)
	if err := dir.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return dir, pool.Close, nil
}
