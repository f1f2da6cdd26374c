package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	hostexecclient "hostexec/internal/client"
	"hostexec/internal/config"
	"hostexec/internal/daemon"
	"hostexec/internal/history"
	"hostexec/internal/jobs"
	"hostexec/internal/logging"
	"hostexec/internal/runner"
	"hostexec/internal/shell"
	"hostexec/internal/store"
)

type DaemonCommand struct {
	stderr     io.Writer
	runDaemon  func(background bool) error
	killDaemon func() error
}

func NewDaemonCommand(stderr io.Writer, runDaemon func(background bool) error, killDaemon func() error) *DaemonCommand {
	return &DaemonCommand{
		stderr:     stderr,
		runDaemon:  runDaemon,
		killDaemon: killDaemon,
	}
}

func (c *DaemonCommand) Run(args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	background := fs.Bool("background", false, "run in background (logs to file)")
	kill := fs.Bool("kill", false, "stop any running daemon and exit")
	force := fs.Bool("force", false, "stop any running daemon before starting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *kill {
		return c.killDaemon()
	}
	if *force {
		if err := c.killDaemon(); err != nil {
			return err
		}
	}
	return c.runDaemon(*background)
}

func runDaemonProcess(background bool) error {
	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return err
	}
	coreCfg, err := config.LoadCoreConfig()
	if err != nil {
		return err
	}

	logOut := io.Writer(os.Stderr)
	if background {
		file, err := openDaemonLog()
		if err == nil {
			defer file.Close()
			logOut = file
		}
	}
	logger := logging.New(logOut, logging.ParseLevel(coreCfg.LogLevel()))

	tokenPath, err := config.TokenPath()
	if err != nil {
		return err
	}
	token, err := daemon.LoadOrCreateToken(tokenPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	historyOpts := []history.Option{
		history.WithCapacity(coreCfg.HistoryCapacity()),
		history.WithLogger(logger),
	}
	if coreCfg.HistoryPersistEnabled() {
		repo, err := openHistoryRepository(coreCfg.HistoryBackend())
		if err != nil {
			return err
		}
		defer repo.Close()
		logger.Info("history_store_opened", logging.F("backend", repo.Backend()))
		historyOpts = append(historyOpts, history.WithStore(repo.History()))
	}
	historyLog, err := history.NewLog(ctx, historyOpts...)
	if err != nil {
		return err
	}

	session, err := shell.New(shell.Config{
		Shell:    coreCfg.SessionShell(),
		Args:     coreCfg.SessionArgs(),
		Dir:      coreCfg.SessionCwd(),
		Timeout:  coreCfg.SessionTimeout(),
		Sentinel: coreCfg.SessionSentinel(),
	}, logger)
	if err != nil {
		return err
	}

	service, err := daemon.NewCommandService(daemon.CommandServiceConfig{
		Runner:         runner.New(logger),
		Jobs:           jobs.NewRegistry(logger),
		History:        historyLog,
		Session:        session,
		DefaultTimeout: coreCfg.ExecDefaultTimeout(),
		HistoryLimit:   coreCfg.HistoryDefaultLimit(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	lockPath, err := config.LockPath()
	if err != nil {
		return err
	}
	d := daemon.New(daemon.Options{
		Addr:     coreCfg.DaemonAddress(),
		Token:    token,
		Version:  buildVersion(),
		LockPath: lockPath,
		Service:  service,
		Logger:   logger,
	})
	return d.Run(ctx)
}

func openHistoryRepository(backend string) (store.Repository, error) {
	dbPath, err := config.HistoryDBPath()
	if err != nil {
		return nil, err
	}
	filePath, err := config.HistoryFilePath()
	if err != nil {
		return nil, err
	}
	return store.OpenRepository(store.RepositoryPaths{
		HistoryPath: filePath,
		DBPath:      dbPath,
	}, backend)
}

func openDaemonLog() (*os.File, error) {
	logPath, err := config.DaemonLogPath()
	if err != nil {
		return nil, err
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func killDaemonWithFactory(newClient clientFactory) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.ShutdownDaemon(ctx); err == nil {
		return nil
	} else {
		var apiErr *hostexecclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		if isDaemonUnavailable(err) {
			return nil
		}
	}
	resp, err := client.Health(ctx)
	if err != nil {
		if isDaemonUnavailable(err) {
			return nil
		}
		return err
	}
	if resp == nil || resp.PID <= 0 {
		return nil
	}
	return terminatePID(resp.PID)
}

func terminatePID(pid int) error {
	if pid <= 0 {
		return errors.New("invalid pid")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

func isDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "connection refused")
}
