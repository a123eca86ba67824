package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akalogirou/weft/internal/catalog"
	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/engine"
	"github.com/akalogirou/weft/internal/events"
	"github.com/akalogirou/weft/internal/natsbus"
	"github.com/akalogirou/weft/internal/notify"
	"github.com/akalogirou/weft/internal/pool"
	"github.com/akalogirou/weft/internal/rpc"
	"github.com/akalogirou/weft/internal/scheduler"
	"github.com/akalogirou/weft/internal/store"
	"github.com/akalogirou/weft/internal/vault"
	"github.com/akalogirou/weft/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("weft %s\n", version)
	case "gateway":
		err = runGateway()
	case "seal":
		err = runSeal(os.Args[2:])
	case "backup":
		err = runBackup(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: weft <command>

Commands:
  gateway    Start the weft gateway service
  seal       Encrypt an agent credential for the catalog
  backup     Archive the data directory to a .tar.zst file
  restore    Restore a backup archive into the data directory
  version    Print version
`)
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting weft gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credential vault
	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	}

	// SQLite run store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	// Agent catalog and resolver
	cat, err := catalog.Load(cfg.Catalog.Path, v)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	resolver := catalog.NewResolver(cat, cfg.Catalog.MinConfidence)

	// Connection pool with per-agent credentials
	creds := make(map[string]string)
	for _, a := range cat.Agents() {
		if a.Credential != "" {
			creds[a.Address] = a.Credential
		}
	}
	dial := func(address string) (natsbus.Conn, error) {
		return natsbus.NewDialer(creds[address])(address)
	}
	p := pool.New(dial, cfg.Pool, cfg.RPC.Retry)
	defer p.Close()

	// Event emitter: log locally, publish to the bus for listeners
	busClient, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer busClient.Close()
	emitter := events.NewEmitter(1024, events.LogSink{}, events.NewNATSSink(busClient))
	go emitter.Run(ctx)

	// Engine
	eng := engine.New(resolver, p, rpc.NewClient(cfg.RPC.CallTimeout), emitter,
		cfg.Engine, cfg.Quality, cfg.RPC.Retry)

	// Scheduler
	sched := scheduler.New(db, eng, cfg.Scheduler)
	go sched.Start(ctx)

	// Telegram notifier
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	if notifier != nil {
		go func() {
			if err := notifier.Start(ctx, busClient); err != nil {
				slog.Error("notifier error", "error", err)
			}
		}()
	}

	// HTTP API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, eng, cat, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP {
			cfg = reloadConfig(cfg, sched, eng)
			continue
		}
		slog.Info("shutting down", "signal", sig)
		cancel()
		return nil
	}
}

// reloadConfig applies the reloadable parts of a changed config file and
// warns about the rest. Returns the config now in effect.
func reloadConfig(current *config.Config, sched *scheduler.Scheduler, eng *engine.Engine) *config.Config {
	next, err := config.Load()
	if err != nil {
		slog.Error("config reload failed, keeping current config", "error", err)
		return current
	}

	diff := config.Diff(current, next)
	for _, field := range diff.NonReloadable {
		slog.Warn("config change requires restart", "field", field)
	}
	if !diff.HasChanges() {
		slog.Info("config reloaded, no reloadable changes")
		return current
	}

	if diff.SchedulerChanged {
		sched.UpdateConfig(diff.NewPollInterval.PollInterval)
	}
	if diff.QualityChanged {
		eng.UpdateQuality(diff.NewQuality)
		slog.Info("quality settings updated", "mode", diff.NewQuality.Mode)
	}
	return next
}

// runSeal encrypts a credential with the vault passphrase so it can be
// pasted into the agent catalog file.
func runSeal(args []string) error {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: weft seal <user:pass>\n\nEnvironment:\n  WEFT_VAULT_PASSPHRASE  Required. Encryption passphrase.\n")
		return fmt.Errorf("expected exactly one credential argument")
	}

	passphrase := os.Getenv("WEFT_VAULT_PASSPHRASE")
	if passphrase == "" {
		return fmt.Errorf("WEFT_VAULT_PASSPHRASE environment variable is required")
	}

	sealed, err := vault.New(passphrase).EncryptString(args[0])
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	fmt.Println(sealed)
	return nil
}
