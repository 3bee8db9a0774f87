package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/web/server"
)

var (
	serveHostFlag string
	servePortFlag int
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve entities over HTTP",
		Long: `Start the HTTP server exposing every defined entity.

  GET    /entities                     list entities
  GET    /entities/{entity}/           search, query parameters are criteria
  GET    /entities/{entity}/{id}       load a record
  PUT    /entities/{entity}/{id}       import the form and save
  DELETE /entities/{entity}/{id}       remove a record

The server stops on SIGINT or SIGTERM, then closes the data sources and the
change feed.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHostFlag, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "Listen port (overrides server.port)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	srv, err := newServer(env)
	if err != nil {
		env.Close(context.Background())
		return err
	}

	gs := server.NewGracefulShutdown(srv, env.config.Server.ShutdownTimeout, env.logger)
	gs.RegisterHook(env.Close)

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(),
		"✓ Serving %d entities on http://%s\n", len(env.repo.Entities()), srv.Addr())
	return gs.Start()
}

// newServer builds the HTTP server from config and flags
func newServer(env *environment) (*server.Server, error) {
	cfg := env.config.Server
	if serveHostFlag != "" {
		cfg.Host = serveHostFlag
	}
	if servePortFlag != 0 {
		cfg.Port = servePortFlag
	}

	sc := server.DefaultConfig(server.NewRouter(env.repo, env.logger))
	sc.Address = cfg.Address()
	if cfg.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.WriteTimeout
	}

	srv, err := server.New(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}
