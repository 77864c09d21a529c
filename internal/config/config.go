// Package config loads g2gmail settings from a YAML file, the environment
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SourceGmail = "gmail"
	SourceIMAP  = "imap"
	SourceMbox  = "mbox"

	TokenStoreSQLite  = "sqlite"
	TokenStoreKeyring = "keyring"

	envPrefix = "G2GMAIL"
)

type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AuthConfig struct {
	TokenStore string `mapstructure:"token_store"`
	DBPath     string `mapstructure:"db_path"`
}

type IMAPConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	TLS                bool   `mapstructure:"tls"`
	StartTLS           bool   `mapstructure:"starttls"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

type MboxConfig struct {
	Path string `mapstructure:"path"`
}

// DisplayConfig describes the glasses display.
type DisplayConfig struct {
	Width        int  `mapstructure:"width"`
	LinesPerPage int  `mapstructure:"lines_per_page"`
	ListRows     int  `mapstructure:"list_rows"`
	NativeList   bool `mapstructure:"native_list"`
}

type ControllerConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	ScrollCooldown time.Duration `mapstructure:"scroll_cooldown"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	ErrorMaxLen    int           `mapstructure:"error_max_len"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Source     string           `mapstructure:"source"`
	Gmail      GmailConfig      `mapstructure:"gmail"`
	Auth       AuthConfig       `mapstructure:"auth"`
	IMAP       IMAPConfig       `mapstructure:"imap"`
	Mbox       MboxConfig       `mapstructure:"mbox"`
	Display    DisplayConfig    `mapstructure:"display"`
	Controller ControllerConfig `mapstructure:"controller"`
	Log        LogConfig        `mapstructure:"log"`
}

// DefaultDir returns ~/.config/g2gmail.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "g2gmail")
}

// DefaultPath returns the default location of config.yaml.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("source", SourceGmail)
	v.SetDefault("gmail.credentials_file", filepath.Join(dir, "client_secret.json"))
	v.SetDefault("auth.token_store", TokenStoreSQLite)
	v.SetDefault("auth.db_path", filepath.Join(dir, "g2gmail.db"))
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.starttls", false)
	v.SetDefault("imap.insecure_skip_verify", false)
	v.SetDefault("mbox.path", "")
	v.SetDefault("display.width", 48)
	v.SetDefault("display.lines_per_page", 9)
	v.SetDefault("display.list_rows", 9)
	v.SetDefault("display.native_list", false)
	v.SetDefault("controller.page_size", 20)
	v.SetDefault("controller.scroll_cooldown", 300*time.Millisecond)
	v.SetDefault("controller.retry_delay", 500*time.Millisecond)
	v.SetDefault("controller.error_max_len", 120)
	v.SetDefault("controller.fetch_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", filepath.Join(dir, "logs"))
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"source":      "source",
	"log-level":   "log.level",
	"width":       "display.width",
	"native-list": "display.native_list",
	"mbox":        "mbox.path",
	"imap-host":   "imap.host",
	"imap-user":   "imap.username",
	"token-store": "auth.token_store",
}

// RegisterFlags attaches the configuration flags to cmd as persistent flags.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", DefaultPath(), "Path to config.yaml")
	flags.String("source", SourceGmail, "Mailbox source: gmail, imap or mbox")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.Int("width", 48, "Display width in characters")
	flags.Bool("native-list", false, "Let the device handle list selection")
	flags.String("mbox", "", "Path to an mbox file (source mbox)")
	flags.String("imap-host", "", "IMAP server hostname (source imap)")
	flags.String("imap-user", "", "IMAP username (source imap)")
	flags.String("token-store", TokenStoreSQLite, "Where to keep the OAuth token: sqlite or keyring")
}

// Load reads path (a missing file means defaults), then applies G2GMAIL_*
// environment variables and any flags set on cmd. cmd may be nil.
func Load(path string, cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultDir())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			f := lookupFlag(cmd, name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(expandHome(path))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil {
		return f
	}
	if f := cmd.PersistentFlags().Lookup(name); f != nil {
		return f
	}
	return nil
}

func (c *Config) normalize() {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	c.Auth.TokenStore = strings.ToLower(strings.TrimSpace(c.Auth.TokenStore))
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	c.Gmail.CredentialsFile = expandHome(c.Gmail.CredentialsFile)
	c.Auth.DBPath = expandHome(c.Auth.DBPath)
	c.Mbox.Path = expandHome(c.Mbox.Path)
	c.Log.Dir = expandHome(c.Log.Dir)
}

// Validate checks value ranges and the settings the chosen source needs.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceGmail:
		switch c.Auth.TokenStore {
		case TokenStoreSQLite, TokenStoreKeyring:
		default:
			return fmt.Errorf("invalid auth.token_store: %s", c.Auth.TokenStore)
		}
	case SourceIMAP:
		if c.IMAP.Host == "" {
			return fmt.Errorf("imap.host is required for source imap")
		}
		if c.IMAP.Username == "" {
			return fmt.Errorf("imap.username is required for source imap")
		}
		if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
			return fmt.Errorf("imap.port must be between 1 and 65535")
		}
	case SourceMbox:
		if c.Mbox.Path == "" {
			return fmt.Errorf("mbox.path is required for source mbox")
		}
	default:
		return fmt.Errorf("invalid source: %q", c.Source)
	}

	if c.Display.Width < 8 {
		return fmt.Errorf("display.width must be at least 8")
	}
	if c.Display.LinesPerPage < 1 || c.Display.ListRows < 1 {
		return fmt.Errorf("display.lines_per_page and display.list_rows must be positive")
	}
	if c.Controller.PageSize < 1 {
		return fmt.Errorf("controller.page_size must be positive")
	}
	if c.Controller.ScrollCooldown < 0 || c.Controller.RetryDelay < 0 || c.Controller.FetchTimeout < 0 {
		return fmt.Errorf("controller durations must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
