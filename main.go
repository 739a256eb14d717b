package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nftview/pkg/backend"
	"nftview/pkg/config"
	"nftview/pkg/coordinator"
	"nftview/pkg/metrics"
	"nftview/pkg/models"
	"nftview/pkg/server"
	"nftview/pkg/tui"
	"nftview/pkg/utils"
)

// Version should be set during build
var Version = "dev"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	dryRunFlag := flag.Bool("dry-run", false, "Perform a trial run with no changes made")
	configFlag := flag.String("config", "", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8090, "Port for API server")
	viewFlag := flag.String("view", "", "Initial view: collection or owner")
	scopeFlag := flag.String("scope", "", "Initial address to search")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("nftview version %s\n", Version)
		os.Exit(0)
	}

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}
	config.ApplyEnv(&cfg)

	if err := applyFlags(&cfg, *viewFlag, *scopeFlag); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := setupLogger(os.Getenv("NFTVIEW_LOG_LEVEL"), *serverFlag || *testFlag || *testLongFlag)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(nil)
	client := backend.NewClient(cfg.APIURL, cfg.IPFSGateway, nil, logger, m)

	if *testFlag || *testLongFlag {
		report := runTest(ctx, cfg, path, client, *dryRunFlag, *jsonFlag, os.Stdout)
		if *jsonFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		}
		if !report.ValidStructure {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Printf("Please fix the config file at %s or run with -test.\n", path)
		os.Exit(1)
	}

	coord := coordinator.NewCoordinator(client, cfg.Scope(), cfg.View, logger, m)
	coord.Start(ctx)

	srv := server.NewServer(coord, logger, m, nil)
	srvErr := serveAPI(ctx, srv, *portFlag, logger)

	if *serverFlag {
		logger.Info("running in server mode", "port", *portFlag, "scope", cfg.Scope(), "view", cfg.View)
		select {
		case err := <-srvErr:
			if err != nil {
				os.Exit(1)
			}
		case <-ctx.Done():
			<-srvErr
		}
		logger.Info("shutdown complete")
		return
	}

	if err := tui.Start(ctx, coord, cfg, path, Version); err != nil && ctx.Err() == nil {
		fmt.Printf("Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags layers -view and -scope over the loaded configuration.
func applyFlags(cfg *config.Config, view, scope string) error {
	if view != "" {
		v := models.ViewKind(view)
		if !v.Valid() {
			return fmt.Errorf("unknown view %q (want collection or owner)", view)
		}
		cfg.View = v
	}
	if scope != "" {
		addr, err := utils.NormalizeAddress(scope)
		if err != nil {
			return err
		}
		cfg.SetScope(cfg.View, addr)
	}
	return nil
}

// serveAPI runs the API server in the background. A failure is logged
// here, since in TUI mode nobody waits on the returned channel.
func serveAPI(ctx context.Context, srv *server.Server, port int, logger *slog.Logger) <-chan error {
	errc := make(chan error, 1)
	go func() {
		err := srv.Start(ctx, port)
		if err != nil {
			logger.Error("api server failed", "port", port, "error", err)
		}
		errc <- err
	}()
	return errc
}

// setupLogger returns the process logger. In server and test mode it
// writes JSON to stderr; the TUI owns the terminal, so there logs go to
// NFTVIEW_LOG_FILE or nowhere.
func setupLogger(levelStr string, headless bool) (*slog.Logger, func()) {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if headless {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), func() {}
	}
	if logPath := os.Getenv("NFTVIEW_LOG_FILE"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			return slog.New(slog.NewTextHandler(f, opts)), func() { _ = f.Close() }
		}
	}
	return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
}

// runTest validates the configuration and probes the backend with both
// configured scopes. Text progress goes to out unless jsonOut is set.
// Addresses are written back lower-cased unless dryRun is set.
func runTest(ctx context.Context, cfg config.Config, path string, client *backend.Client, dryRun, jsonOut bool, out io.Writer) models.TestReport {
	say := func(format string, args ...interface{}) {
		if !jsonOut {
			fmt.Fprintf(out, format, args...)
		}
	}

	report := models.TestReport{
		ConfigPath:     path,
		APIURL:         cfg.APIURL,
		ValidStructure: true,
		DryRun:         dryRun,
	}
	say("Testing configuration at: %s\n", path)

	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		say("Error: %v\n", err)
		return report
	}

	before := cfg
	updated := cfg.Normalize()
	say("Backend: %s\n", cfg.APIURL)

	probes := []struct {
		view    models.ViewKind
		scope   string
		changed bool
	}{
		{models.ViewCollection, cfg.CollectionAddress, before.CollectionAddress != cfg.CollectionAddress},
		{models.ViewOwner, cfg.OwnerAddress, before.OwnerAddress != cfg.OwnerAddress},
	}
	for _, p := range probes {
		say("  %-10s %s ... ", p.view, p.scope)
		list := client.ListTokens(ctx, client.TokensEndpoint(p.view, p.scope))
		res := models.ScopeResult{
			View:    p.view,
			Scope:   p.scope,
			Status:  list.Status,
			Count:   len(list.Tokens),
			Error:   list.Reason,
			Updated: p.changed,
		}
		switch list.Status {
		case models.StatusFailed:
			say("Failed: %s", list.Reason)
		case models.StatusEmpty:
			say("OK (no tokens)")
		default:
			say("OK (%d tokens)", res.Count)
		}
		if p.changed {
			say(" - NORMALIZED")
		}
		say("\n")
		report.Scopes = append(report.Scopes, res)
	}

	if updated {
		report.ConfigUpdated = true
		say("\nUpdating configuration with normalized addresses...\n")
		if dryRun {
			say("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(cfg, path); err != nil {
			report.SaveError = err.Error()
			say("Failed to save config: %v\n", err)
		} else {
			say("Configuration saved successfully.\n")
		}
	}

	return report
}
