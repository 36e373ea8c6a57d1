// Package main is the docflow CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/cli"
	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/ingest"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/server"
	"github.com/hyperjump/docflow/internal/storage"
	"github.com/hyperjump/docflow/internal/watcher"
	"github.com/hyperjump/docflow/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/docflow/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the working directory wins if present, and a missing default file falls back
// to built-in defaults plus the environment.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			config.LoadDotEnv("")
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "upload":
		err = runUpload(args)
	case "list":
		err = runList(args)
	case "search":
		err = runSearch(args)
	case "stats":
		err = runStats(args)
	case "delete":
		err = runDelete(args)
	case "reconcile":
		err = runReconcile(args)
	case "version", "--version", "-v":
		fmt.Printf("docflow version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Service.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to open search indexes: %w", err)
	}
	if cfg.Ingest.ReconcileOnStart {
		n, err := c.Service.Reconcile(ctx, cfg.Ingest.StaleAfter)
		if err != nil {
			logger.Error("reconcile failed", zap.Error(err))
		} else {
			logger.Info("reconcile finished", zap.Int("marked", n), zap.Duration("stale_after", cfg.Ingest.StaleAfter))
		}
	}

	var inbox *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		inbox = watcher.New(cfg.Watch.Directories, cfg.Watch.Owner, c.Service,
			watcher.WithLogger(logger),
			watcher.WithExtensions(cfg.Ingest.AllowedExtensions),
			watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()))
		if err := inbox.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		if cfg.Watch.SyncExisting {
			go inbox.Sync(ctx)
		}
	}

	srv := server.NewServer(c.Service, &cfg.Server,
		server.WithLogger(logger),
		server.WithMaxBody(cfg.Ingest.MaxUploadBytes+1<<20))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if inbox != nil {
		inbox.Stop()
	}
	if err := c.Service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background processing did not finish; run reconcile after restart", zap.Error(err))
	}
	return nil
}

// clientFlags registers the flags shared by client commands.
func clientFlags(fs *flag.FlagSet) (serverURL, user, output *string) {
	serverURL = fs.String("server", envOr("DOCFLOW_SERVER", defaultServerURL), "server URL")
	user = fs.String("user", envOr("DOCFLOW_USER", "cli"), "caller identity sent as "+server.UserHeader)
	output = fs.String("output", "text", "output format: text or json")
	return serverURL, user, output
}

func runUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL, user, _ := clientFlags(fs)
	_ = fs.Parse(cli.ReorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: docflow upload [flags] <file>...")
	}

	client := cli.NewClient(*serverURL, *user)
	failed := 0
	for _, path := range fs.Args() {
		res, err := client.UploadFile(context.Background(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s\t%s\n", res.DocumentID, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, fs.NArg())
	}
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL, user, output := clientFlags(fs)
	owner := fs.String("owner", "", "only documents uploaded by owner")
	fileType := fs.String("type", "", "only documents of this file type (pdf, docx, ...)")
	status := fs.String("status", "", "only documents in this status (uploaded, processing, completed, error)")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	recs, err := cli.NewClient(*serverURL, *user).List(context.Background(), cli.ListParams{
		Owner: *owner, Type: *fileType, Status: *status,
	})
	if err != nil {
		return err
	}
	return cli.WriteDocuments(os.Stdout, recs, format)
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL, user, output := clientFlags(fs)
	top := fs.Int("top", 10, "number of results")
	kwEnabled := fs.Bool("keyword", true, "enable keyword search")
	semEnabled := fs.Bool("semantic", true, "enable semantic search")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy keyword matching")
	fileType := fs.String("type", "", "filter by file type")
	owner := fs.String("owner", "", "filter by uploader")
	tag := fs.String("tag", "", "filter by tag")
	category := fs.String("category", "", "filter by category")
	_ = fs.Parse(cli.ReorderArgs(args))

	query := cli.JoinArgs(fs.Args())
	if query == "" {
		return errors.New("usage: docflow search [flags] <query>")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	resp, err := cli.NewClient(*serverURL, *user).Search(context.Background(), &models.SearchQuery{
		Query:           query,
		Top:             *top,
		KeywordEnabled:  *kwEnabled,
		SemanticEnabled: *semEnabled,
		FuzzyEnabled:    *fuzzy,
		Filters: models.SearchFilters{
			FileType:   *fileType,
			UploadedBy: *owner,
			Tag:        *tag,
			Category:   *category,
		},
	})
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(os.Stdout, resp, format)
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL, user, output := clientFlags(fs)
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	stats, err := cli.NewClient(*serverURL, *user).Stats(context.Background())
	if err != nil {
		return err
	}
	return cli.WriteStats(os.Stdout, stats, format)
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL, user, _ := clientFlags(fs)
	_ = fs.Parse(cli.ReorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: docflow delete [flags] <document-id>")
	}
	client := cli.NewClient(*serverURL, *user)
	for _, id := range fs.Args() {
		if err := client.Delete(context.Background(), id); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Printf("Document deleted: %s\n", id)
	}
	return nil
}

// runReconcile works on the metadata store directly and is meant to run while
// the server is stopped.
func runReconcile(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	olderThan := fs.Duration("older-than", 0, "mark records not updated for this long (default: ingest.stale_after)")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	threshold := cfg.Ingest.StaleAfter
	if *olderThan > 0 {
		threshold = *olderThan
	}
	svc := ingest.New(ingest.Deps{Store: store}, &cfg.Ingest, ingest.WithLogger(logger))
	n, err := svc.Reconcile(ctx, threshold)
	if err != nil {
		return err
	}
	fmt.Printf("Marked %d stale document(s) as error (older than %s)\n", n, threshold.Round(time.Second))
	return nil
}

func printUsage() {
	fmt.Println(`docflow - asynchronous document ingestion and hybrid search

Usage:
  docflow server [flags]              Start the HTTP server (and inbox watcher)
  docflow upload [flags] <file>...    Upload files for processing
  docflow list [flags]                List documents
  docflow search [flags] <query>      Search documents
  docflow stats [flags]               Show document and index statistics
  docflow delete [flags] <id>...      Delete documents
  docflow reconcile [flags]           Mark documents stuck by a restart as error
  docflow version                     Show version
  docflow help                        Show this help

Server / Reconcile Flags:
  --config string      Config file path (default: /usr/local/etc/docflow/config.yaml)
  --debug              Enable debug logging (server only)
  --older-than dur     Staleness threshold (reconcile only; default: ingest.stale_after)

Client Flags (upload, list, search, stats, delete):
  --server string      Server URL (default: $DOCFLOW_SERVER or http://localhost:8080)
  --user string        Caller identity (default: $DOCFLOW_USER or "cli")
  --output string      text or json (list, search, stats)

List Flags:
  --owner, --type, --status

Search Flags:
  --top int            Number of results (default: 10, max 100)
  --keyword, --semantic  Enable keyword / semantic search (default: both)
  --fuzzy              Typo-tolerant keyword matching
  --type, --owner, --tag, --category  Filters

Examples:
  docflow server --config ./config.yaml
  docflow upload --user alice report.pdf scan.png
  docflow list --status error
  docflow search --type pdf "quarterly revenue"
  docflow search --output json zebra migration
  docflow delete 3f2c8d1e-...
  docflow reconcile --older-than 30m`)
}
