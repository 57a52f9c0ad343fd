package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tracyhatemice/mailsift/internal/auth"
	"github.com/tracyhatemice/mailsift/internal/config"
	"github.com/tracyhatemice/mailsift/internal/extract"
	"github.com/tracyhatemice/mailsift/internal/ledger"
	"github.com/tracyhatemice/mailsift/internal/mailbox"
	"github.com/tracyhatemice/mailsift/internal/scanner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	revoke := flag.Bool("revoke", false, "revoke the stored credential and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	since, before, err := parseDates(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\nusage: mailsift [-config path] [since [before]] (dates as YYYY-MM-DD)\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kind := auth.KindForHost(cfg.Account.Host)
	logger.Info("mailsift starting", "host", cfg.Account.Host, "provider", kind.String())

	var manager *auth.Manager
	if cfg.Account.Protocol != "pop3" {
		manager = newManager(cfg, kind, logger)
	}

	if *revoke {
		if manager == nil {
			fmt.Fprintln(os.Stderr, "error: nothing to revoke for pop3 accounts")
			os.Exit(1)
		}
		if err := manager.Revoke(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Credential revoked.")
		return
	}

	led, err := ledger.Load(cfg.LedgerFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	win := mailbox.Window{
		Since:  led.ResumePoint(since),
		Before: before,
	}
	logger.Info("scan window resolved", "since", win.Since.Format(ledger.DateFormat))

	mbox, err := newMailbox(ctx, cfg, kind, manager, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer mbox.Close()

	extractor := extract.TextExtractor{}
	sc := scanner.New(mbox, led, extractor, cfg.AttachmentsDir, cfg.Filter, logger)

	sum, err := sc.Run(ctx, win)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Processed %d message(s), saved %d attachment(s), skipped %d already-scanned message(s).\n",
		sum.Messages, sum.Attachments, sum.Skipped)
}

// newManager wires the credential lifecycle for the provider backing the
// account host.
func newManager(cfg *config.Config, kind auth.Kind, logger *slog.Logger) *auth.Manager {
	port := cfg.OAuth.GetCallbackPort()
	redirectURL := fmt.Sprintf("http://localhost:%d%s", port, auth.DefaultCallbackPath)

	var provider auth.Provider
	switch kind {
	case auth.KindGoogle:
		provider = auth.NewGoogle(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, redirectURL)
	default:
		provider = auth.NewMicrosoft(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.GetTenantID(), redirectURL)
	}

	flow := &auth.BrowserFlow{
		Port:    port,
		Path:    auth.DefaultCallbackPath,
		Timeout: cfg.OAuth.AuthTimeout(),
		Logger:  logger,
	}
	return auth.NewManager(auth.NewStore(cfg.TokenFile), provider, flow, logger)
}

// newMailbox resolves a usable credential (where needed) and opens the
// mail session for the account.
func newMailbox(ctx context.Context, cfg *config.Config, kind auth.Kind, manager *auth.Manager, logger *slog.Logger) (mailbox.Mailbox, error) {
	if cfg.Account.Protocol == "pop3" {
		return mailbox.NewPOP3(cfg.Account.Host, cfg.Account.GetPort(), cfg.Account.Username, cfg.Account.Password, logger), nil
	}

	token, err := manager.Token(ctx)
	if err != nil {
		return nil, err
	}

	if kind == auth.KindGoogle {
		return mailbox.NewGmail(ctx, token, logger)
	}
	return mailbox.NewIMAP(cfg.Account.Host, cfg.Account.GetPort(), cfg.Account.Username, token, cfg.Account.GetFolder(), logger), nil
}

// parseDates reads the optional positional start and end dates.
func parseDates(args []string) (since, before time.Time, err error) {
	if len(args) > 2 {
		return since, before, fmt.Errorf("too many arguments")
	}
	if len(args) >= 1 {
		since, err = time.Parse(ledger.DateFormat, args[0])
		if err != nil {
			return since, before, fmt.Errorf("bad start date %q", args[0])
		}
	}
	if len(args) == 2 {
		before, err = time.Parse(ledger.DateFormat, args[1])
		if err != nil {
			return since, before, fmt.Errorf("bad end date %q", args[1])
		}
		if !before.After(since) {
			return since, before, fmt.Errorf("end date must be after start date")
		}
	}
	return since, before, nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
