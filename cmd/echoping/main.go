// Package main provides the CLI entry point for echoping, an ICMP echo client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/postalsys/echoping/internal/config"
	"github.com/postalsys/echoping/internal/health"
	"github.com/postalsys/echoping/internal/icmp"
	"github.com/postalsys/echoping/internal/logging"
	"github.com/postalsys/echoping/internal/metrics"
	"github.com/postalsys/echoping/internal/session"
	"github.com/postalsys/echoping/internal/stats"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "echoping [flags] <hostname/IP address>",
		Short: "Send ICMP echo requests to a host",
		Long: `echoping sends one ICMP echo request per second to an IPv4 host,
prints a line for every reply and a statistics summary on interrupt.

Raw ICMP sockets need root or CAP_NET_RAW.`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are valid from here on, runtime failures need no usage text.
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve health and metrics endpoints on this address")

	return cmd
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, host string) error {
	privErr := checkPrivilege()
	if privErr != nil {
		logger.Debug("not running as root, relying on CAP_NET_RAW", logging.KeyError, privErr)
	}

	ip, err := session.NewResolver().Resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("unknown host %s: %w", host, err)
	}

	conn, err := icmp.Listen()
	if err != nil {
		if privErr != nil {
			return fmt.Errorf("%w: %w", privErr, err)
		}
		return err
	}
	defer conn.Close()

	reporter := stats.NewReporter(os.Stdout)
	reporter.Banner(host, ip, icmp.HeaderLen)

	sess := session.New(session.Config{
		Host:   host,
		Target: ip,
		ID:     icmp.ProcessIdentifier(),
	}, conn, logger,
		session.WithReporter(reporter),
		session.WithMetrics(metrics.Default()))

	status := &sessionStatus{host: host, target: ip, sess: sess}

	if cfg.Metrics.Enabled {
		srv := health.NewServer(health.ServerConfig{
			Address:      cfg.Metrics.Address,
			ReadTimeout:  cfg.Metrics.ReadTimeout,
			WriteTimeout: cfg.Metrics.WriteTimeout,
			Logger:       logger,
		}, status)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Stop()
		logger.Info("metrics server listening", logging.KeyAddress, srv.Address().String())
	}

	status.running.Store(true)
	snap := sess.Run(ctx)
	status.running.Store(false)

	reporter.Summary(host, snap)

	logger.Debug("shutdown complete",
		logging.KeyTarget, ip.String(),
		logging.KeyCount, humanize.Comma(int64(snap.Sent)),
		"started", humanize.Time(snap.Start))

	return nil
}

// sessionStatus exposes a running session to the health server.
type sessionStatus struct {
	host    string
	target  net.IP
	sess    *session.Session
	running atomic.Bool
}

func (s *sessionStatus) IsRunning() bool {
	return s.running.Load()
}

func (s *sessionStatus) Stats() health.Stats {
	return health.Stats{
		Host:     s.host,
		Target:   s.target.String(),
		State:    s.sess.State().String(),
		Snapshot: s.sess.Stats().Snapshot(),
	}
}
