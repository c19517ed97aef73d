package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/rpcscope/internal/config"
	"github.com/danmuck/rpcscope/internal/message"
	"github.com/danmuck/rpcscope/internal/observability"
	"github.com/danmuck/rpcscope/internal/session"
	"github.com/danmuck/rpcscope/internal/transport/loopback"
	"github.com/danmuck/rpcscope/internal/transport/wsconn"
	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type connectOptions struct {
	offline     bool
	traffic     bool
	fastPing    bool
	quiet       bool
	exportPath  string
	metricsAddr string
}

func connectCmd(flags *globalFlags) *cobra.Command {
	opts := &connectOptions{}
	cmd := &cobra.Command{
		Use:   "connect [url]",
		Short: "Open an interactive JSON-RPC session",
		Long: `Connect opens a session and reads commands from stdin ("help" lists
them). Every frame is printed as it is logged. With --offline the session
talks to a built-in simulated peer instead of dialing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.URL = args[0]
			}
			if cmd.Flags().Changed("offline") {
				cfg.Offline = opts.offline
			}
			if cmd.Flags().Changed("traffic") {
				cfg.Simulator.Traffic = opts.traffic
			}
			if opts.fastPing {
				cfg.FastPing.Enabled = true
			}
			if opts.metricsAddr != "" {
				cfg.Metrics.Addr = opts.metricsAddr
			}
			return runConnect(cmd, cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "use the simulated peer")
	cmd.Flags().BoolVar(&opts.traffic, "traffic", true, "generate requests while offline")
	cmd.Flags().BoolVar(&opts.fastPing, "fast-ping", false, "start with the ping loop enabled")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print entries as they are logged")
	cmd.Flags().StringVar(&opts.exportPath, "export", "", "write the log to this file on exit")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	return cmd
}

func runConnect(cmd *cobra.Command, cfg config.Config, opts *connectOptions) error {
	out := &syncWriter{w: cmd.OutOrStdout()}
	clock := session.SystemClock{}

	sc, err := cfg.Session(cfg.Rand())
	if err != nil {
		return err
	}
	sc.Clock = clock
	sc.Factory, err = wsconn.NewFactory(cfg.Transport())
	if err != nil {
		return err
	}
	sc.OfflineFactory = loopback.NewFactory(cfg.Loopback(clock, cfg.Rand()))

	metrics, err := observability.NewSessionMetrics(nil)
	if err != nil {
		return err
	}
	sc.Observers = append(sc.Observers, metrics)
	if !opts.quiet {
		sc.Observers = append(sc.Observers, session.ObserverFuncs{
			OnEntry: func(e message.Entry) {
				_, _ = out.Write([]byte(formatEntry(e) + "\n"))
			},
		})
	}

	m, err := session.NewManager(sc)
	if err != nil {
		return err
	}
	defer m.Close()

	if cfg.Metrics.Addr != "" {
		stop := serveAdmin(cfg.Metrics.Addr, m)
		defer stop()
	}
	if cfg.Offline && cfg.Simulator.Traffic {
		traffic := loopback.StartTraffic(m, cfg.Traffic(clock, cfg.Rand()))
		defer traffic.Stop()
	}

	m.Connect()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	done := make(chan error, 1)
	c := &console{m: m, out: out}
	in := cmd.InOrStdin()
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = isatty.IsTerminal(f.Fd())
	}
	go func() { done <- c.run(in, prompt) }()

	select {
	case err = <-done:
	case <-ctx.Done():
	}
	m.Disconnect()

	if opts.exportPath != "" {
		if exportErr := exportLog(opts.exportPath, m.Entries()); exportErr != nil {
			return errors.Join(err, exportErr)
		}
		log.Info().Str("path", opts.exportPath).Msg("log exported")
	}
	return err
}

// serveAdmin exposes /health and /metrics for a running session.
func serveAdmin(addr string, m *session.Manager) func() {
	gin.SetMode(gin.ReleaseMode)
	engine := observability.NewAdminEngine(observability.AdminConfig{
		Node: "rpcscope",
		Status: func() map[string]any {
			reqs, batches := m.PendingCounts()
			return map[string]any{
				"state":           m.State().String(),
				"url":             m.URL(),
				"pendingRequests": reqs,
				"pendingBatches":  batches,
			}
		},
	})
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("admin listener failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("admin listener started")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
