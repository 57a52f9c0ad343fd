package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultCallbackPath is the redirect path registered with the providers.
const DefaultCallbackPath = "/oauth/callback"

var (
	// ErrAuthTimeout is returned when no callback arrives before the
	// watchdog fires.
	ErrAuthTimeout = errors.New("authorization timed out")

	// ErrAuthDenied is returned when the redirect carries no
	// authorization code.
	ErrAuthDenied = errors.New("authorization denied")
)

// Listener is the transient local endpoint that captures the OAuth
// redirect. The socket is acquired at construction and released on every
// exit path of Wait. Exactly one redirect resolves the flow.
type Listener struct {
	ln     net.Listener
	path   string
	logger *slog.Logger

	once   sync.Once
	codeCh chan string
	errCh  chan error
}

// NewListener binds the local callback socket.
func NewListener(port int, path string, logger *slog.Logger) (*Listener, error) {
	if path == "" {
		path = DefaultCallbackPath
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on callback port %d: %w", port, err)
	}
	return &Listener{
		ln:     ln,
		path:   path,
		logger: logger,
		codeCh: make(chan string, 1),
		errCh:  make(chan error, 1),
	}, nil
}

// Port returns the bound local port.
func (l *Listener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

// Close releases the socket. Safe to call after Wait has returned.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Wait serves the callback endpoint until a redirect resolves the flow, the
// watchdog timeout elapses, or ctx is cancelled. The endpoint stops
// listening as soon as the outcome is known.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handleCallback)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()

	select {
	case code := <-l.codeCh:
		return code, nil
	case err := <-l.errCh:
		return "", err
	case err := <-serveErr:
		return "", fmt.Errorf("callback server: %w", err)
	case <-watchdog.C:
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		errMsg := r.URL.Query().Get("error_description")
		if errMsg == "" {
			errMsg = r.URL.Query().Get("error")
		}
		if errMsg == "" {
			errMsg = "no authorization code received"
		}

		l.resolve("", fmt.Errorf("%w: %s", ErrAuthDenied, errMsg))

		// errMsg comes straight from the redirect query; escape it.
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<html><body><h1>Authorization Failed</h1><p>%s</p></body></html>`, html.EscapeString(errMsg))
		return
	}

	l.resolve(code, nil)

	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, `<html><body>
		<h1>Authorization Successful</h1>
		<p>You can close this window and return to the terminal.</p>
	</body></html>`)
}

// resolve records the flow outcome. Only the first call wins; later
// redirects get a page but change nothing.
func (l *Listener) resolve(code string, err error) {
	l.once.Do(func() {
		if err != nil {
			l.errCh <- err
			return
		}
		l.codeCh <- code
	})
}
