package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailterm/internal/app"
	"github.com/nhle/mailterm/internal/cache"
	"github.com/nhle/mailterm/internal/credential"
	"github.com/nhle/mailterm/internal/logging"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
	"github.com/nhle/mailterm/internal/source/email"
	"github.com/nhle/mailterm/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

// shutdownTimeout bounds how long exit waits for an in-flight sync.
const shutdownTimeout = 3 * time.Second

func main() {
	var (
		showVersion bool
		configPath  string
		demo        int
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the config file")
	flag.IntVar(&demo, "demo", 0, "run offline with N generated messages")
	flag.Parse()

	if showVersion {
		fmt.Printf("mailterm %s\n", Version)
		return
	}

	if err := run(configPath, demo); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, demo int) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = logging.NullLogger()
	} else {
		defer logCloser.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting mailterm", "version", Version, "config", configPath)

	opts := app.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		NewMailbox: func(account model.AccountConfig, password string) source.Mailbox {
			return email.NewAdapter(account, password)
		},
		Validate: func(ctx context.Context, account model.AccountConfig, password string) (string, error) {
			return email.NewAdapter(account, password).ValidateConnection(ctx)
		},
	}

	dbPath, cachePath := cfg.Storage.DBPath, cfg.Storage.CachePath
	if demo > 0 {
		dbPath, cachePath = ":memory:", ""
		cfg.Account.ID = demoAccount
		opts.SkipSetup = true
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()
	opts.Store = s

	bodies, err := cache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("failed to open body cache: %w", err)
	}
	defer bodies.Close()
	opts.Cache = bodies

	if demo > 0 {
		if err := seedDemo(context.Background(), s, demo); err != nil {
			return fmt.Errorf("failed to seed demo messages: %w", err)
		}
	} else {
		creds, err := credential.Open()
		if err != nil {
			logger.Warn("keyring unavailable", "error", err)
		}
		opts.Creds = creds
		opts.Mailbox = connectMailbox(cfg.Account, creds, logger)
	}

	m, err := app.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	logger.Info("starting TUI")

	final, err := p.Run()
	if fm, ok := final.(app.Model); ok {
		fm.Shutdown()
		if !fm.WaitStopped(shutdownTimeout) {
			logger.Warn("sync still running at exit", "timeout", shutdownTimeout)
		}
	}
	if err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// connectMailbox builds the mail adapter when the account is configured
// and its password is in the keyring.
func connectMailbox(account model.AccountConfig, creds *credential.Store, logger *slog.Logger) source.Mailbox {
	if !account.IsConfigured() || creds == nil {
		return nil
	}
	password, err := creds.Password(account.ID)
	if err != nil {
		logger.Warn("no password for account", "account", account.ID, "error", err)
		return nil
	}
	return email.NewAdapter(account, password)
}
