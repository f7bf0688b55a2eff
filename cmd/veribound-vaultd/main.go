// Command veribound-vaultd serves sealed records over gRPC from a
// content-addressed store, optionally watching the active boundary policy
// file and exposing Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/dhwcmoore/veribound-mvp/config"
	"github.com/dhwcmoore/veribound-mvp/policywatch"
	"github.com/dhwcmoore/veribound-mvp/storage"
	"github.com/dhwcmoore/veribound-mvp/storage/casconfig"
	"github.com/dhwcmoore/veribound-mvp/storage/casregistry"
	"github.com/dhwcmoore/veribound-mvp/storage/grpcvault"

	// Storage backends register themselves with casregistry.
	_ "github.com/dhwcmoore/veribound-mvp/storage/ipfs"
	_ "github.com/dhwcmoore/veribound-mvp/storage/localfs"
	_ "github.com/dhwcmoore/veribound-mvp/storage/memcas"
)

var (
	rpcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribound_vault_rpcs_total",
		Help: "Vault RPCs by method and gRPC status code.",
	}, []string{"method", "code"})

	policyChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribound_policy_checks_total",
		Help: "Boundary policy re-checks by result.",
	}, []string{"result"})
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("veribound-vaultd", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "gRPC listen address (overrides config)")
	backend := fs.String("backend", "", "CAS backend name (overrides config)")
	metricsListen := fs.String("metrics-listen", "", "Prometheus listen address (overrides config)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)
	_ = fs.Parse(args)

	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Vault.Listen = *listen
	}
	if *backend != "" {
		cfg.Vault.Backend = *backend
		cfg.Vault.BackendConfig = nil
		cfg.Vault.CASConfigPath = ""
	}
	if *metricsListen != "" {
		cfg.Metrics.Listen = *metricsListen
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := newLogger(cfg.Log.Level)

	cas, closeCAS, err := openStorage(cfg)
	if err != nil {
		logger.Error("open storage", "error", err)
		return 2
	}
	defer func() { _ = closeCAS() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Policy.Path != "" && cfg.Policy.Watch {
		watcher, werr := policywatch.New(cfg.Policy.Path, cfg.Policy.DebounceDelay, logger)
		if werr != nil {
			logger.Error("policy watcher", "error", werr)
			return 2
		}
		if werr := watcher.Start(ctx); werr != nil {
			logger.Error("policy watcher", "error", werr)
			return 2
		}
		defer func() { _ = watcher.Stop() }()
		go consumePolicyUpdates(watcher, logger)
	}

	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, logger)
	}

	lis, err := net.Listen("tcp", cfg.Vault.Listen)
	if err != nil {
		logger.Error("listen", "addr", cfg.Vault.Listen, "error", err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer(grpc.UnaryInterceptor(countRPCs))
	grpcvault.RegisterVaultServer(s, &grpcvault.Server{CAS: cas})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	logger.Info("vault listening",
		"addr", lis.Addr().String(),
		"backend", cfg.Vault.Backend,
		"metrics", cfg.Metrics.Listen)
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", "error", err)
		return 1
	}
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStorage(cfg *config.Config) (storage.CAS, func() error, error) {
	if cfg.Vault.CASConfigPath != "" {
		casCfg, err := casconfig.LoadFile(cfg.Vault.CASConfigPath)
		if err != nil {
			return nil, nil, err
		}
		return casCfg.Open(casregistry.UsageDaemon, "")
	}
	if len(cfg.Vault.BackendConfig) > 0 {
		return casregistry.OpenWithConfig(cfg.Vault.Backend, casregistry.UsageDaemon, cfg.Vault.BackendConfig)
	}
	return casregistry.Open(cfg.Vault.Backend, casregistry.UsageDaemon)
}

func countRPCs(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	rpcTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	return resp, err
}

// consumePolicyUpdates logs every policy re-check. The vault keeps
// serving during an unsound edit; the failing proof is surfaced here and
// in the metrics, not by refusing traffic.
func consumePolicyUpdates(w *policywatch.Watcher, logger *slog.Logger) {
	for u := range w.Updates() {
		if u.Err != nil {
			policyChecks.WithLabelValues("failed").Inc()
			logger.Error("policy check failed", "path", u.Path, "hash", u.Hash, "error", u.Err)
			continue
		}
		policyChecks.WithLabelValues("ok").Inc()
		logger.Info("policy verified",
			"path", u.Path,
			"hash", u.Hash,
			"bands", len(u.Policy.Bands))
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", "error", err)
	}
}
