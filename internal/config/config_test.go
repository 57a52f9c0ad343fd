package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
filter: invoice
attachments_dir: /var/mail/attachments
token_file: /var/mail/token.json
ledger_file: /var/mail/scanned.csv
account:
  host: outlook.office365.com
  port: 993
  username: user@example.com
  folder: Invoices
oauth:
  client_id: abc
  client_secret: xyz
  tenant_id: contoso
  callback_port: 9000
  auth_timeout_seconds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "invoice", cfg.Filter)
	assert.Equal(t, "/var/mail/attachments", cfg.AttachmentsDir)
	assert.Equal(t, "outlook.office365.com", cfg.Account.Host)
	assert.Equal(t, "Invoices", cfg.Account.GetFolder())
	assert.Equal(t, 993, cfg.Account.GetPort())
	assert.Equal(t, "contoso", cfg.OAuth.GetTenantID())
	assert.Equal(t, 9000, cfg.OAuth.GetCallbackPort())
	assert.Equal(t, time.Minute, cfg.OAuth.AuthTimeout())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
filter: receipt
account:
  host: imap.gmail.com
  username: user@gmail.com
oauth:
  client_id: abc
  client_secret: xyz
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "attachments", cfg.AttachmentsDir)
	assert.Equal(t, "data/token.json", cfg.TokenFile)
	assert.Equal(t, "data/scanned.csv", cfg.LedgerFile)
	assert.Equal(t, "INBOX", cfg.Account.GetFolder())
	assert.Equal(t, 993, cfg.Account.GetPort())
	assert.Equal(t, "common", cfg.OAuth.GetTenantID())
	assert.Equal(t, 8484, cfg.OAuth.GetCallbackPort())
	assert.Equal(t, 5*time.Minute, cfg.OAuth.AuthTimeout())
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing filter",
			content: `
account:
  host: imap.example.com
  username: u
oauth: {client_id: a, client_secret: b}
`,
			wantErr: "filter is required",
		},
		{
			name: "missing host",
			content: `
filter: f
account: {username: u}
oauth: {client_id: a, client_secret: b}
`,
			wantErr: "account.host is required",
		},
		{
			name: "missing client id",
			content: `
filter: f
account: {host: h, username: u}
oauth: {client_secret: b}
`,
			wantErr: "oauth.client_id is required",
		},
		{
			name: "bad protocol",
			content: `
filter: f
account: {host: h, username: u, protocol: nntp}
oauth: {client_id: a, client_secret: b}
`,
			wantErr: "account.protocol must be imap or pop3",
		},
		{
			name: "pop3 without password",
			content: `
filter: f
account: {host: h, username: u, protocol: pop3}
`,
			wantErr: "account.password is required for pop3",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestPOP3WithoutOAuth(t *testing.T) {
	path := writeConfig(t, `
filter: f
account:
  host: pop.example.com
  username: u
  password: secret
  protocol: pop3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 995, cfg.Account.GetPort())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
