package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// Flow runs the interactive part of the authorization-code grant and
// returns the captured code.
type Flow interface {
	Authorize(ctx context.Context, authURL string) (string, error)
}

// BrowserFlow launches the system browser at the authorization URL and
// captures the redirect on a local listener.
type BrowserFlow struct {
	Port    int
	Path    string
	Timeout time.Duration
	OpenURL func(string) error
	Logger  *slog.Logger
}

// Authorize starts the callback listener, opens the browser, and waits for
// the redirect. The listener socket is released on every exit path.
func (f *BrowserFlow) Authorize(ctx context.Context, authURL string) (string, error) {
	listener, err := NewListener(f.Port, f.Path, f.Logger)
	if err != nil {
		return "", err
	}
	defer func() { _ = listener.Close() }()

	open := f.OpenURL
	if open == nil {
		open = OpenBrowser
	}
	if err := open(authURL); err != nil {
		f.Logger.Warn("could not open browser", "error", err)
		_, _ = fmt.Fprintf(os.Stdout, "Open the following link in your browser to authorize:\n%s\n", authURL)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return listener.Wait(ctx, timeout)
}

// OpenBrowser opens url in the default system browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
