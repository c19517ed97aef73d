package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/rpcscope/internal/observability"
	"github.com/danmuck/rpcscope/internal/rpcserver"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	addr      string
	path      string
	heartbeat time.Duration
	origins   []string
}

func serveCmd(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference JSON-RPC websocket server",
		Long: `Serve runs a small JSON-RPC 2.0 server for trying the client: it answers
ping and echo, reports unknown methods, and pushes stream.heartbeat
notifications. /health and /metrics are served next to the websocket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(flags); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":9191", "listen address")
	cmd.Flags().StringVar(&opts.path, "path", "/ws", "websocket path")
	cmd.Flags().DurationVar(&opts.heartbeat, "heartbeat", time.Second, "heartbeat interval (0 disables)")
	cmd.Flags().StringSliceVar(&opts.origins, "cors-origin", nil, "allowed CORS origins for the HTTP endpoints")
	return cmd
}

func newServeEngine(opts *serveOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := observability.NewAdminEngine(observability.AdminConfig{
		Node:        "rpcscope-serve",
		CorsOrigins: opts.origins,
	})
	engine.GET(opts.path, gin.WrapH(rpcserver.New(rpcserver.Config{HeartbeatInterval: opts.heartbeat})))
	return engine
}

func runServe(ctx context.Context, opts *serveOptions) error {
	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newServeEngine(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", opts.addr).Str("path", opts.path).Msg("json-rpc websocket server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
