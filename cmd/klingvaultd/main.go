// Package main provides the klingvaultd daemon - a multi-chain account vault.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/internal/config"
	"github.com/klingon-exchange/klingvault/internal/rpc"
	"github.com/klingon-exchange/klingvault/internal/storage"
	"github.com/klingon-exchange/klingvault/internal/wallet"
	"github.com/klingon-exchange/klingvault/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	// Parse flags
	var (
		dataDir     = flag.String("data-dir", "~/.klingvault", "Data directory")
		listenAddr  = flag.String("listen", "", "JSON-RPC listen address, overrides config")
		chainsFile  = flag.String("chains", "", "Chain list YAML file, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Set up logging (initial, replaced once the config is loaded)
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("klingvaultd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Load or create config file, then apply environment and CLI overrides
	cfg, err := config.LoadConfig(*dataDir)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if err := cfg.ApplyEnv(config.EnvPrefix); err != nil {
		log.Fatal("Failed to apply environment", "error", err)
	}
	if *listenAddr != "" {
		cfg.RPC.Listen = *listenAddr
	}
	if *chainsFile != "" {
		cfg.Chains.File = *chainsFile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logOut, err := logging.OpenFile(config.ExpandPath(cfg.Logging.File))
	if err != nil {
		log.Fatal("Failed to open log file", "error", err)
	}
	defer logOut.Close()

	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
		Output:     logOut,
	})
	logging.SetDefault(log)

	log.Info("Config loaded", "path", config.ConfigPath(*dataDir))

	// Initialize storage
	dataPath := config.ExpandPath(cfg.Storage.DataDir)
	store, err := storage.New(&storage.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	// Initialize chain registry
	loadChains := chainLoader(cfg)
	chains := chain.NewRegistry()
	list, err := loadChains()
	if err != nil {
		log.Fatal("Failed to load chains", "error", err)
	}
	if _, err := chains.Replace(list); err != nil {
		log.Fatal("Failed to install chains", "error", err)
	}
	log.Info("Chain registry initialized", "chains", chains.Len(), "file", cfg.ChainsFile())

	// Initialize wallet service
	walletService, err := wallet.NewService(&wallet.ServiceConfig{
		Storage: store,
		Chains:  chains,
	})
	if err != nil {
		log.Fatal("Failed to initialize wallet service", "error", err)
	}
	defer walletService.Close()
	log.Info("Wallet service initialized", "accounts", len(walletService.List()))

	// Start RPC server
	var rpcServer *rpc.Server
	if cfg.RPC.Listen != "" {
		rpcServer = rpc.NewServer(&rpc.ServerConfig{
			Wallet:     walletService,
			LoadChains: loadChains,
			Version:    version,
		})
		if err := rpcServer.Start(cfg.RPC.Listen); err != nil {
			log.Fatal("Failed to start RPC server", "error", err)
		}
	} else {
		log.Warn("RPC server disabled")
	}

	printBanner(log, cfg, chains)

	// SIGHUP reloads the chain list; SIGINT and SIGTERM stop the daemon.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		reloadChains(log, chains, loadChains)
	}
	log.Info("Shutting down...")

	if rpcServer != nil {
		if err := rpcServer.Stop(); err != nil {
			log.Error("Error stopping RPC server", "error", err)
		}
	}

	log.Info("Goodbye!")
}

// chainLoader returns the chain list described by the config: the built-in
// chains (unless disabled) with the optional chain file merged over them.
func chainLoader(cfg *config.Config) rpc.ChainLoader {
	return func() ([]chain.Chain, error) {
		var list []chain.Chain
		if cfg.Chains.Builtin {
			list = chain.Builtin()
		}
		if path := cfg.ChainsFile(); path != "" {
			extra, err := chain.LoadFile(path)
			if err != nil {
				return nil, err
			}
			list = chain.Merge(list, extra)
		}
		return list, nil
	}
}

func reloadChains(log *logging.Logger, chains *chain.Registry, load rpc.ChainLoader) {
	list, err := load()
	if err != nil {
		log.Error("Failed to reload chains", "error", err)
		return
	}
	change, err := chains.Replace(list)
	if err != nil {
		log.Error("Failed to install chains", "error", err)
		return
	}
	log.Info("Chains reloaded",
		"added", len(change.Added),
		"removed", len(change.Removed),
		"updated", len(change.Updated))
}

func printBanner(log *logging.Logger, cfg *config.Config, chains *chain.Registry) {
	substrate := len(chains.ListByEthereumFlag(false))
	ethereum := len(chains.ListByEthereumFlag(true))

	log.Info("")
	log.Info("=================================================")
	log.Info("  Klingvault")
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	if cfg.RPC.Listen != "" {
		log.Infof("  API: http://%s", cfg.RPC.Listen)
		log.Infof("  WS:  ws://%s/ws", cfg.RPC.Listen)
		log.Info("")
	}
	log.Infof("  Chains: %d substrate | %d ethereum-based", substrate, ethereum)
	log.Infof("  Data dir: %s", config.ExpandPath(cfg.Storage.DataDir))
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
