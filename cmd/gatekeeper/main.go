package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/iudanet/gatekeeper/internal/admin"
	"github.com/iudanet/gatekeeper/internal/audit"
	"github.com/iudanet/gatekeeper/internal/auth"
	"github.com/iudanet/gatekeeper/internal/cli"
	"github.com/iudanet/gatekeeper/internal/config"
	"github.com/iudanet/gatekeeper/internal/crypto"
	"github.com/iudanet/gatekeeper/internal/dispatch"
	"github.com/iudanet/gatekeeper/internal/iocli"
	"github.com/iudanet/gatekeeper/internal/session"
	"github.com/iudanet/gatekeeper/internal/storage"
	"github.com/iudanet/gatekeeper/internal/storage/boltdb"
	"github.com/iudanet/gatekeeper/internal/storage/jsonfile"
	"github.com/iudanet/gatekeeper/internal/storage/sqlite"
	"github.com/iudanet/gatekeeper/internal/voice"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Конфигурация из окружения, флаги поверх нее
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	showVersion := flag.Bool("version", false, "Show version information")
	flag.StringVar(&cfg.UsersPath, "users", cfg.UsersPath, "Path to the credential store file")
	flag.StringVar(&cfg.StorageBackend, "backend", cfg.StorageBackend, "Storage backend: json, bolt or sqlite")
	flag.StringVar(&cfg.LogPath, "log", cfg.LogPath, "Path to the audit log file")
	flag.StringVar(&cfg.CSVLogPath, "csv", cfg.CSVLogPath, "Path for CSV log export")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flag.IntVar(&cfg.MaxFailedAttempts, "max-attempts", cfg.MaxFailedAttempts, "Failed login attempts before lockout")
	flag.BoolVar(&cfg.DiscloseRemaining, "disclose-remaining", cfg.DiscloseRemaining, "Show remaining attempts on failed login")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	hasher := crypto.NewSHA256Hasher()

	// Открываем хранилище учетных записей
	store, err := openStore(ctx, cfg, hasher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open credential store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close credential store", "error", err)
		}
	}()

	trail, err := audit.New(cfg.LogPath, cfg.CSVLogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audit log: %v\n", err)
		os.Exit(1)
	}

	engine := auth.NewEngine(store, hasher, cfg.MaxFailedAttempts)
	sessions := session.NewRegistry()
	adminSvc := admin.NewService(store, engine, hasher, trail)
	stdio := iocli.NewStdio()
	dispatcher := dispatch.New(sessions, engine, adminSvc, trail, stdio)

	app := cli.New(cli.Params{
		IO:         stdio,
		Engine:     engine,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		// Распознаватель речи не поставляется: голосовой режим
		// активируется подключением voice.Transcriber
		Voice:             voice.NewIntegration(nil),
		Trail:             trail,
		Logger:            logger,
		DiscloseRemaining: cfg.DiscloseRemaining,
		WarnDefaultAdmin:  store.Seeded(),
	})

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore выбирает бэкенд хранилища по конфигурации
func openStore(ctx context.Context, cfg *config.Config, hasher crypto.PasswordHasher) (storage.CredentialStore, error) {
	seed := storage.DefaultAdmin(hasher)

	switch cfg.StorageBackend {
	case config.BackendBolt:
		return boltdb.New(ctx, cfg.UsersPath, seed)
	case config.BackendSQLite:
		return sqlite.New(ctx, cfg.UsersPath, seed)
	default:
		return jsonfile.New(ctx, cfg.UsersPath, seed)
	}
}

func printVersion() {
	fmt.Printf("Gatekeeper\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
