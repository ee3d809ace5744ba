package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AccountConfig holds the mail server settings for the single configured
// account. The password is stored in the system keyring, never here.
type AccountConfig struct {
	// ID is the stable identifier used for keyring entries and the store.
	ID string `mapstructure:"id" yaml:"id"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// Mailbox is the mailbox shown in the list (usually INBOX).
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// ArchiveMailbox is tried first when archiving. Common names are
	// tried after it.
	ArchiveMailbox string `mapstructure:"archive_mailbox" yaml:"archive_mailbox"`
}

// IsConfigured reports whether enough settings exist to connect.
func (a AccountConfig) IsConfigured() bool {
	return a.IMAPHost != "" && a.Username != ""
}

// ListConfig holds the virtual list tuning values.
type ListConfig struct {
	ItemHeight int `mapstructure:"item_height" yaml:"item_height"`
	Overscan   int `mapstructure:"overscan" yaml:"overscan"`
	Threshold  int `mapstructure:"threshold" yaml:"threshold"`
}

// SyncConfig controls background mailbox polling.
type SyncConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	FetchLimit      int `mapstructure:"fetch_limit" yaml:"fetch_limit"`
	SinceDays       int `mapstructure:"since_days" yaml:"since_days"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	List    ListConfig    `mapstructure:"list" yaml:"list"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// configDir returns ~/.config/mailterm, or the working directory if the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailterm")
}

// dataDir returns ~/.local/share/mailterm.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "mailterm")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailterm/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			ID:       "default",
			IMAPPort: "993",
			SMTPPort: "587",
			TLS:      true,
			Mailbox:  "INBOX",
		},
		List: ListConfig{
			ItemHeight: 2,
			Overscan:   5,
			Threshold:  50,
		},
		Sync: SyncConfig{
			PollIntervalSec: 120,
			FetchLimit:      500,
			SinceDays:       30,
		},
		Storage: StorageConfig{
			DBPath:    filepath.Join(dataDir(), "mail.db"),
			CachePath: filepath.Join(dataDir(), "bodies.db"),
		},
		Logging: LoggingConfig{
			File:  filepath.Join(dataDir(), "mailterm.log"),
			Level: "INFO",
		},
	}
}

// setDefaults registers every default on v so missing keys resolve to
// sensible values.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("account.id", d.Account.ID)
	v.SetDefault("account.imap_port", d.Account.IMAPPort)
	v.SetDefault("account.smtp_port", d.Account.SMTPPort)
	v.SetDefault("account.tls", d.Account.TLS)
	v.SetDefault("account.mailbox", d.Account.Mailbox)
	v.SetDefault("list.item_height", d.List.ItemHeight)
	v.SetDefault("list.overscan", d.List.Overscan)
	v.SetDefault("list.threshold", d.List.Threshold)
	v.SetDefault("sync.poll_interval_sec", d.Sync.PollIntervalSec)
	v.SetDefault("sync.fetch_limit", d.Sync.FetchLimit)
	v.SetDefault("sync.since_days", d.Sync.SinceDays)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("storage.cache_path", d.Storage.CachePath)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed with MAILTERM_ override file values
// (e.g. MAILTERM_LIST_OVERSCAN).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mailterm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Account.Mailbox == "" {
		cfg.Account.Mailbox = "INBOX"
	}
	if cfg.Sync.PollIntervalSec <= 0 {
		cfg.Sync.PollIntervalSec = 120
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("list", cfg.List)
	v.Set("sync", cfg.Sync)
	v.Set("storage", cfg.Storage)
	v.Set("logging", cfg.Logging)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
