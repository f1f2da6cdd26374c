package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"hostexec/internal/logging"
)

var ErrDaemonRunning = errors.New("daemon already running (lock held by another process)")

type Daemon struct {
	addr     string
	token    string
	version  string
	lockPath string
	service  *CommandService
	logger   logging.Logger
	server   *http.Server
}

type Options struct {
	Addr    string
	Token   string
	Version string
	// LockPath, when set, is locked for the daemon's lifetime so a second
	// daemon for the same data dir refuses to start.
	LockPath string
	Service  *CommandService
	Logger   logging.Logger
}

func New(opts Options) *Daemon {
	return &Daemon{
		addr:     opts.Addr,
		token:    opts.Token,
		version:  opts.Version,
		lockPath: strings.TrimSpace(opts.LockPath),
		service:  opts.Service,
		logger:   logging.OrNop(opts.Logger).With(logging.F("component", "daemon")),
	}
}

// Run serves the API until ctx is cancelled or a shutdown request arrives,
// then stops the interactive session and kills background jobs.
func (d *Daemon) Run(ctx context.Context) error {
	if d.service == nil {
		return errors.New("command service is required")
	}
	unlock, err := d.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()
	defer d.service.Close()

	listener, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.addr, err)
	}
	return d.serve(ctx, listener)
}

func (d *Daemon) serve(ctx context.Context, listener net.Listener) error {
	api := &API{
		Version: d.version,
		Service: d.service,
		Logger:  d.logger,
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := LoggingMiddleware(d.logger, TokenAuthMiddleware(d.token, mux))
	d.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	api.Shutdown = d.server.Shutdown

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("daemon_listening",
			logging.F("addr", listener.Addr().String()),
			logging.F("version", d.version),
			logging.F("pid", os.Getpid()),
		)
		errCh <- d.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		d.logger.Info("daemon_stopped", logging.F("reason", "signal"))
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			d.logger.Info("daemon_stopped", logging.F("reason", "shutdown_request"))
			return nil
		}
		return err
	}
}

func (d *Daemon) acquireLock() (func(), error) {
	if d.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o700); err != nil {
		return nil, err
	}
	fileLock := flock.New(d.lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, ErrDaemonRunning
	}
	return func() { _ = fileLock.Unlock() }, nil
}
