package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hydraresolve/hydraresolve/internal/adminapi"
	"github.com/hydraresolve/hydraresolve/internal/cluster"
	"github.com/hydraresolve/hydraresolve/internal/config"
	"github.com/hydraresolve/hydraresolve/internal/logging"
	"github.com/hydraresolve/hydraresolve/internal/roothints"
	"github.com/hydraresolve/hydraresolve/internal/server"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	configPath      string
	allowOtherTypes bool
	showVersion     bool
	host            string
	port            int
	workers         int
	noTCP           bool
	jsonLogs        bool
	debug           bool
	clusterMode     string
	clusterPrimary  string
	clusterSecret   string
	clusterNodeID   string
}

// parseFlags parses command-line flags. -c/--config and -V both have
// single-letter aliases since the long form is for config files and scripts
// while the short form is for interactive use.
func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("hydradns", flag.ContinueOnError)

	fs.StringVar(&f.configPath, "config", "", "Path to TOML configuration file")
	fs.StringVar(&f.configPath, "c", "", "Path to TOML configuration file (shorthand)")
	fs.BoolVar(&f.allowOtherTypes, "allow-other-types", false, "Set the allow_other_types option (the iterative resolver resolves every query type itself either way; nothing is forwarded)")
	fs.BoolVar(&f.showVersion, "V", false, "Print version and exit")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&f.host, "host", "", "Override DNS server bind host")
	fs.IntVar(&f.port, "port", 0, "Override DNS server bind port")
	fs.IntVar(&f.workers, "workers", -1, "Clamp GOMAXPROCS (can only reduce; -1 means default/auto)")
	fs.BoolVar(&f.noTCP, "no-tcp", false, "Disable TCP server")
	fs.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.clusterMode, "cluster-mode", "", "Cluster mode: standalone, primary, or secondary")
	fs.StringVar(&f.clusterPrimary, "cluster-primary", "", "Primary node URL for secondary mode")
	fs.StringVar(&f.clusterSecret, "cluster-secret", "", "Shared secret for cluster authentication")
	fs.StringVar(&f.clusterNodeID, "cluster-node-id", "", "Unique node ID (auto-generated if empty)")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

// applyCLIOverrides applies command-line overrides to the config.
func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.allowOtherTypes {
		cfg.Iterative.AllowOtherTypes = true
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.workers >= 0 {
		cfg.Server.Workers.Mode = config.WorkersFixed
		cfg.Server.Workers.Value = f.workers
	}
	if f.noTCP {
		cfg.Server.EnableTCP = false
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
	if f.clusterMode != "" {
		cfg.Cluster.Mode = config.ClusterMode(f.clusterMode)
	}
	if f.clusterPrimary != "" {
		cfg.Cluster.PrimaryURL = f.clusterPrimary
	}
	if f.clusterSecret != "" {
		cfg.Cluster.SharedSecret = f.clusterSecret
	}
	if f.clusterNodeID != "" {
		cfg.Cluster.NodeID = f.clusterNodeID
	}
	if cfg.Cluster.NodeID == "" {
		cfg.Cluster.NodeID = uuid.New().String()[:8]
	}
}

// run parses flags, loads configuration, and runs the server. It returns
// the process exit code: 0 on a clean shutdown, 2 on a configuration error,
// 1 on a runtime error. Usage errors (bad flags) are reported directly by the
// flag package with exit code 2.
func run(args []string) int {
	flags, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.showVersion {
		fmt.Println("hydradns", version)
		return 0
	}

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("HydraDNS starting",
		"config", flags.configPath,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"workers", cfg.Server.Workers.String(),
		"tcp", cfg.Server.EnableTCP,
		"node_id", cfg.Cluster.NodeID,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := server.NewRunner(logger)

	var adminSrv *adminapi.Server
	if cfg.API.Enabled {
		adminSrv = adminapi.New(cfg, logger, cfg.Cluster.NodeID)
		runner.SetAdminHandler(adminSrv.Handler())
	}

	var syncer *cluster.Syncer
	if cfg.Cluster.Mode == config.ClusterModeSecondary {
		syncer = startClusterSyncer(ctx, cfg, logger, adminSrv)
	} else if adminSrv != nil && cfg.Cluster.Mode == config.ClusterModePrimary {
		adminSrv.Handler().SetClusterExportFunc(primaryExportFunc(cfg))
	}

	if adminSrv != nil {
		logger.Info("admin API starting", "addr", adminSrv.Addr())
		go func() {
			serveErr := adminSrv.ListenAndServe()
			if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) {
				return
			}
			logger.Error("admin API error", "err", serveErr)
			cancel()
		}()
	}

	runErr := runner.RunWithContext(ctx, cfg)

	if syncer != nil {
		syncer.Stop()
	}
	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = adminSrv.Shutdown(shutdownCtx)
		shutdownCancel()
		logger.Info("admin API stopped")
	}

	if runErr != nil {
		logger.Error("server exited with error", "err", runErr)
		return 1
	}
	return 0
}

// startClusterSyncer initializes and starts the cluster syncer for
// secondary mode. Imported root-hints/blocklist data isn't hot-reloaded
// into the running resolver chain (that requires a restart, same as the
// rest of this server's config); the syncer's job here is to write the
// synced data to disk so the next restart picks up the latest primary data.
func startClusterSyncer(ctx context.Context, cfg *config.Config, logger *slog.Logger, adminSrv *adminapi.Server) *cluster.Syncer {
	logger.InfoContext(ctx, "starting cluster syncer",
		"primary_url", cfg.Cluster.PrimaryURL,
		"node_id", cfg.Cluster.NodeID,
		"sync_interval", cfg.Cluster.SyncInterval,
	)

	rootHintsPath := cfg.Iterative.RootHintsPath
	if rootHintsPath == "" {
		rootHintsPath = "cluster-synced.root-hints"
	}
	blocklistPath := clusterBlocklistPath(cfg)

	var localVersion atomic.Int64

	importFunc := func(data *cluster.ExportData) error {
		if err := writeRootHints(rootHintsPath, data.RootHints); err != nil {
			return fmt.Errorf("write root hints: %w", err)
		}
		if err := os.WriteFile(blocklistPath, []byte(strings.Join(data.BlocklistDomains, "\n")), 0o644); err != nil {
			return fmt.Errorf("write blocklist domains: %w", err)
		}
		localVersion.Store(data.Version)
		return nil
	}

	reloadFunc := func() error {
		logger.DebugContext(ctx, "cluster data imported; takes effect on next restart")
		return nil
	}

	versionFunc := func() (int64, error) {
		return localVersion.Load(), nil
	}

	syncer, err := cluster.NewSyncer(&cfg.Cluster, logger, importFunc, reloadFunc, versionFunc)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create cluster syncer", "err", err)
		return nil
	}

	if adminSrv != nil {
		adminSrv.Handler().SetClusterStatusFunc(syncer.Status)
	}

	if err := syncer.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to start cluster syncer", "err", err)
		return nil
	}

	return syncer
}

// clusterBlocklistPath derives a side-file path for synced blocklist
// domains, alongside the probe-ledger store if one is configured.
func clusterBlocklistPath(cfg *config.Config) string {
	if cfg.Store.Path == "" {
		return "cluster-synced-blocklist.txt"
	}
	return filepath.Join(filepath.Dir(cfg.Store.Path), "cluster-synced-blocklist.txt")
}

// writeRootHints renders addrs as a named.root-format file so
// internal/roothints.Load can read it back on the next restart.
func writeRootHints(path string, addrs []netip.Addr) error {
	var b strings.Builder
	for _, a := range addrs {
		typ := "A"
		if a.Is6() {
			typ = "AAAA"
		}
		fmt.Fprintf(&b, ".\t3600000\tIN\t%s\t%s\n", typ, a.String())
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// primaryExportFunc builds this node's cluster export from its own static
// configuration: the configured root hints (explicit IPs or the named.root
// file) and the explicit blacklist domain list. It does not walk the merged
// blocklist trie, which has no enumeration API; operators relying on
// downloaded blocklists for cluster export should list them in
// filters.blocklist_domains directly.
func primaryExportFunc(cfg *config.Config) func() (*cluster.ExportData, error) {
	return func() (*cluster.ExportData, error) {
		roots, err := loadConfiguredRootHints(cfg)
		if err != nil {
			return nil, err
		}
		return &cluster.ExportData{
			Version:          time.Now().Unix(),
			Timestamp:        time.Now(),
			NodeID:           cfg.Cluster.NodeID,
			RootHints:        roots,
			BlocklistDomains: cfg.Filtering.BlacklistDomains,
		}, nil
	}
}

// loadConfiguredRootHints resolves this node's current root server
// addresses the same way server.Runner does: explicit IPs take precedence
// over the named.root file.
func loadConfiguredRootHints(cfg *config.Config) ([]netip.Addr, error) {
	if len(cfg.Iterative.Roots) > 0 {
		addrs := make([]netip.Addr, 0, len(cfg.Iterative.Roots))
		for _, raw := range cfg.Iterative.Roots {
			addr, err := netip.ParseAddr(raw)
			if err == nil {
				addrs = append(addrs, addr)
			}
		}
		return addrs, nil
	}
	if cfg.Iterative.RootHintsPath == "" {
		return nil, nil
	}
	return roothints.Load(cfg.Iterative.RootHintsPath)
}
