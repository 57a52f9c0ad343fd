package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel       string  `yaml:"log_level"`
	Filter         string  `yaml:"filter"`
	AttachmentsDir string  `yaml:"attachments_dir"`
	TokenFile      string  `yaml:"token_file"`
	LedgerFile     string  `yaml:"ledger_file"`
	Account        Account `yaml:"account"`
	OAuth          OAuth   `yaml:"oauth"`
}

// Account describes the scanned mailbox.
type Account struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"` // "imap" or "pop3"; Gmail hosts always use the Gmail API
	Username string `yaml:"username"`
	Password string `yaml:"password"` // pop3 only
	Folder   string `yaml:"folder"`
}

// OAuth holds the OAuth application credentials and flow settings.
type OAuth struct {
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	TenantID           string `yaml:"tenant_id"` // Microsoft only
	CallbackPort       int    `yaml:"callback_port"`
	AuthTimeoutSeconds int    `yaml:"auth_timeout_seconds"`
}

// GetFolder returns the mailbox folder name, defaulting to "INBOX".
func (a *Account) GetFolder() string {
	if a.Folder == "" {
		return "INBOX"
	}
	return a.Folder
}

// GetPort returns the mail server port, defaulting to 993 (IMAPS) or 995 (POP3S).
func (a *Account) GetPort() int {
	if a.Port > 0 {
		return a.Port
	}
	if a.Protocol == "pop3" {
		return 995
	}
	return 993
}

// GetCallbackPort returns the local OAuth callback port, defaulting to 8484.
func (o *OAuth) GetCallbackPort() int {
	if o.CallbackPort <= 0 {
		return 8484
	}
	return o.CallbackPort
}

// GetTenantID returns the Microsoft tenant, defaulting to "common".
func (o *OAuth) GetTenantID() string {
	if o.TenantID == "" {
		return "common"
	}
	return o.TenantID
}

// AuthTimeout returns how long to wait for the authorization callback,
// defaulting to 5 minutes.
func (o *OAuth) AuthTimeout() time.Duration {
	if o.AuthTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(o.AuthTimeoutSeconds) * time.Second
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{
		LogLevel:       "info",
		AttachmentsDir: "attachments",
		TokenFile:      "data/token.json",
		LedgerFile:     "data/scanned.csv",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Filter == "" {
		return fmt.Errorf("filter is required")
	}
	if c.Account.Host == "" {
		return fmt.Errorf("account.host is required")
	}
	if c.Account.Username == "" {
		return fmt.Errorf("account.username is required")
	}
	switch c.Account.Protocol {
	case "", "imap":
	case "pop3":
		if c.Account.Password == "" {
			return fmt.Errorf("account.password is required for pop3")
		}
		// POP3 authenticates with a password, OAuth settings are not needed.
		return nil
	default:
		return fmt.Errorf("account.protocol must be imap or pop3")
	}
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("oauth.client_id is required")
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("oauth.client_secret is required")
	}
	return nil
}
