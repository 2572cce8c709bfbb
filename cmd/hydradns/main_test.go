package main

import (
	"flag"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/hydraresolve/hydraresolve/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	f, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Empty(t, f.configPath)
	assert.False(t, f.allowOtherTypes)
	assert.False(t, f.showVersion)
	assert.Equal(t, -1, f.workers)
}

func TestParseFlags_ShortAndLongForms(t *testing.T) {
	f, err := parseFlags([]string{"-c", "hydradns.toml", "--allow-other-types", "-V"})
	require.NoError(t, err)
	assert.Equal(t, "hydradns.toml", f.configPath)
	assert.True(t, f.allowOtherTypes)
	assert.True(t, f.showVersion)
}

func TestParseFlags_Help(t *testing.T) {
	_, err := parseFlags([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseFlags_UnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"--not-a-real-flag"})
	require.Error(t, err)
	assert.False(t, err == flag.ErrHelp)
}

func TestRun_UnknownFlagExitsTwo(t *testing.T) {
	assert.Equal(t, 2, run([]string{"--not-a-real-flag"}))
}

func TestRun_HelpExitsZero(t *testing.T) {
	assert.Equal(t, 0, run([]string{"-h"}))
}

func TestRun_VersionExitsZero(t *testing.T) {
	assert.Equal(t, 0, run([]string{"-V"}))
}

func TestApplyCLIOverrides(t *testing.T) {
	cfg := &config.Config{}
	f := cliFlags{
		allowOtherTypes: true,
		host:            "127.0.0.1",
		port:            5353,
		workers:         2,
		noTCP:           true,
		jsonLogs:        true,
		debug:           true,
		clusterMode:     "primary",
		clusterPrimary:  "https://primary.example",
		clusterSecret:   "shh",
		clusterNodeID:   "node-a",
	}

	applyCLIOverrides(cfg, f)

	assert.True(t, cfg.Iterative.AllowOtherTypes)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5353, cfg.Server.Port)
	assert.Equal(t, config.WorkersFixed, cfg.Server.Workers.Mode)
	assert.Equal(t, 2, cfg.Server.Workers.Value)
	assert.False(t, cfg.Server.EnableTCP)
	assert.True(t, cfg.Logging.Structured)
	assert.Equal(t, "json", cfg.Logging.StructuredFormat)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, config.ClusterModePrimary, cfg.Cluster.Mode)
	assert.Equal(t, "https://primary.example", cfg.Cluster.PrimaryURL)
	assert.Equal(t, "shh", cfg.Cluster.SharedSecret)
	assert.Equal(t, "node-a", cfg.Cluster.NodeID)
}

func TestApplyCLIOverrides_GeneratesNodeIDWhenEmpty(t *testing.T) {
	cfg := &config.Config{}
	applyCLIOverrides(cfg, cliFlags{})
	assert.NotEmpty(t, cfg.Cluster.NodeID)
}

func TestWriteRootHints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roots.hints")

	addrs := []netip.Addr{
		netip.MustParseAddr("198.41.0.4"),
		netip.MustParseAddr("2001:503:ba3e::2:30"),
	}
	require.NoError(t, writeRootHints(path, addrs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "IN\tA\t198.41.0.4")
	assert.Contains(t, content, "IN\tAAAA\t2001:503:ba3e::2:30")
}

func TestClusterBlocklistPath(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "cluster-synced-blocklist.txt", clusterBlocklistPath(cfg))

	cfg.Store.Path = "/var/lib/hydradns/store.db"
	assert.Equal(t, "/var/lib/hydradns/cluster-synced-blocklist.txt", clusterBlocklistPath(cfg))
}

func TestPrimaryExportFunc(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cluster.NodeID = "node-a"
	cfg.Iterative.Roots = []string{"198.41.0.4", "not-an-ip"}
	cfg.Filtering.BlacklistDomains = []string{"bad.example."}

	export := primaryExportFunc(cfg)
	data, err := export()
	require.NoError(t, err)

	require.Len(t, data.RootHints, 1, "invalid IPs should be skipped")
	assert.Equal(t, "198.41.0.4", data.RootHints[0].String())
	assert.Equal(t, []string{"bad.example."}, data.BlocklistDomains)
	assert.Equal(t, "node-a", data.NodeID)
}
