package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/packhouse/coordinator/pkg/config"
	"github.com/packhouse/coordinator/pkg/discovery"
	"github.com/packhouse/coordinator/pkg/events"
	"github.com/packhouse/coordinator/pkg/lockmgr"
	"github.com/packhouse/coordinator/pkg/log"
	"github.com/packhouse/coordinator/pkg/profile"
	"github.com/packhouse/coordinator/pkg/session"
	"github.com/packhouse/coordinator/pkg/stats"
)

var (
	// Version information, set via ldflags during build.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	err := rootCmd.Execute()
	if cache != nil {
		cache.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "packctl",
	Short: "packctl drives the packhouse coordinator's core packages",
	Long: `packctl is a thin CLI front-end over the packhouse coordinator
library: it starts and ends packing sessions, feeds scan events, inspects
and force-releases locks, lists discovered sessions across the shared
filesystem, and dumps aggregated stats. It is never more than a caller of
the packages under pkg/ — a GUI wired to the same packages is the intended
production front-end.`,
	Version: Version,
}

var (
	cfgPath string
	cfg     *config.Config

	paths        *profile.Paths
	profiles     *profile.Service
	locks        *lockmgr.Manager
	broker       *events.Broker
	sessions     *session.Manager
	statsAgg     *stats.Aggregator
	scanner      *discovery.Scanner
	cache        *discovery.Cache
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("packctl version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "packctl.yaml", "Path to the host configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging, initCore)

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(discoveryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// initCore wires every package's constructor together from the loaded
// Config, assembling the whole dependency graph in one place before any
// command runs.
func initCore() {
	loaded, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	paths = profile.NewPaths(cfg.ShareRoot)
	profiles = profile.NewService(cfg.ShareRoot)

	identity := lockmgr.Identity{
		Host:       cfg.HostName,
		User:       currentUser(),
		PID:        os.Getpid(),
		WorkerID:   cfg.WorkerID,
		WorkerName: cfg.WorkerName,
		AppVersion: cfg.AppVersion,
	}
	locks = lockmgr.New(identity, cfg.StaleThreshold)
	broker = events.NewBroker()
	broker.Start()

	statsAgg = stats.New(paths.StatsFilePath())
	sessions = session.New(paths, profiles, locks, broker, statsAgg, identity, cfg.HeartbeatInterval)
	scanner = discovery.New(paths, locks)

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.WithComponent("main").Warn().Err(err).Msg("scan cache directory unavailable, falling back to uncached scans")
	} else {
		c, err := discovery.OpenCache(filepath.Join(cfg.CacheDir, "scan-cache.db"), cfg.StaleThreshold)
		if err != nil {
			log.WithComponent("main").Warn().Err(err).Msg("scan cache unavailable, falling back to uncached scans")
		} else {
			cache = c
		}
	}
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
