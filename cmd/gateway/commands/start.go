package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/VacuolePaoo/gatewaygui/internal/gateway"
	"github.com/VacuolePaoo/gatewaygui/internal/logger"
	"github.com/VacuolePaoo/gatewaygui/internal/tlsmanager"
	"github.com/VacuolePaoo/gatewaygui/pkg/config"
	"github.com/VacuolePaoo/gatewaygui/pkg/metrics"
	metricsprom "github.com/VacuolePaoo/gatewaygui/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start the gateway in the foreground: bind the QUIC and UDP sockets,
mount every configured directory, open the cache, and run until interrupted.

Examples:
  # Start with the default configuration
  gateway start

  # Start with a specific configuration file
  gateway start --config /etc/gateway/config.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gatewayMetrics metrics.GatewayMetrics = metrics.NoOp{}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		gatewayMetrics = metricsprom.New(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}

		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err.Error())
			}
		}()
		defer func() { _ = metricsSrv.Close() }()

		logger.Info("metrics endpoint enabled", "addr", metricsAddr)
	}

	opts, err := supervisorOptions(cfg, gatewayMetrics)
	if err != nil {
		return err
	}

	sup, err := gateway.New(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	logger.Info("gateway is running", "peer_id", sup.LocalID().String())
	fmt.Println("Gateway running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		if err := sup.Shutdown(); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		<-runDone
	case err := <-runDone:
		signal.Stop(sigChan)
		if err != nil && err != context.Canceled {
			return fmt.Errorf("gateway stopped with error: %w", err)
		}
	}

	logger.Info("gateway stopped")
	return nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// supervisorOptions translates a loaded config.Config into the
// gateway.Options the Supervisor constructor expects.
func supervisorOptions(cfg *config.Config, m metrics.GatewayMetrics) (gateway.Options, error) {
	verifyMode, err := tlsmanager.ParseVerifyMode(cfg.TLS.VerifyMode)
	if err != nil {
		return gateway.Options{}, err
	}

	mounts := make([]gateway.MountSpec, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		mounts = append(mounts, gateway.MountSpec{
			Root:        m.Root,
			Name:        m.Name,
			DisplayName: m.DisplayName,
			ReadOnly:    m.ReadOnly,
		})
	}

	rules := make([]gateway.AccessRuleSpec, 0, len(cfg.AccessRules))
	for _, r := range cfg.AccessRules {
		rules = append(rules, gateway.AccessRuleSpec{
			CIDR:   r.CIDR,
			Action: r.Action,
			Note:   r.Note,
		})
	}

	return gateway.Options{
		LocalName:    cfg.Identity.Name,
		QUICBindAddr: cfg.Identity.QUICBindAddr,
		UDPBindAddr:  cfg.Identity.UDPBindAddr,
		MountSideDir: cfg.Identity.MountSideDir,

		TLSBundleDir:  cfg.TLS.BundleDir,
		TLSVerifyMode: verifyMode,

		CacheDir:             cfg.Cache.Dir,
		CacheDefaultTTL:      cfg.Cache.DefaultTTL,
		CacheMaxBytes:        uint64(cfg.Cache.MaxBytes),
		CacheCleanupInterval: cfg.Cache.CleanupInterval,

		CompressionMinSize:  cfg.Compression.MinCompressSize,
		CompressionMaxChunk: cfg.Compression.MaxChunkSize,
		CompressionLevel:    cfg.Compression.Level,

		SecureFileMaxSize: int64(cfg.SecureFile.MaxSize),

		RegistryConnectionTimeout: cfg.Registry.ConnectionTimeout,
		RegistryCleanupInterval:   cfg.Registry.CleanupInterval,

		BroadcastInterval: cfg.Supervisor.BroadcastInterval,

		Mounts:      mounts,
		AccessRules: rules,

		Metrics: m,
	}, nil
}
