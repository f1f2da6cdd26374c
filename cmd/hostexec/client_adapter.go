package main

import (
	"context"

	hostexecclient "hostexec/internal/client"
	"hostexec/internal/types"
)

type clientFactory func() (commandClient, error)

type commandClient interface {
	EnsureDaemon(ctx context.Context) error
	EnsureDaemonVersion(ctx context.Context, expectedVersion string, restart bool) error
	ShutdownDaemon(ctx context.Context) error
	Health(ctx context.Context) (*hostexecclient.HealthResponse, error)
	Exec(ctx context.Context, req hostexecclient.ExecRequest) (*types.CommandOutcome, error)
	ExecAsync(ctx context.Context, req hostexecclient.ExecRequest) (*types.CommandOutcome, error)
	StartJob(ctx context.Context, req hostexecclient.ExecRequest) (*types.JobSummary, error)
	ListJobs(ctx context.Context) ([]types.JobSummary, error)
	TerminateJob(ctx context.Context, id int) (bool, error)
	History(ctx context.Context, limit int) ([]types.HistoryEntry, error)
	SearchHistory(ctx context.Context, query string) ([]types.HistoryEntry, error)
	Rerun(ctx context.Context, id uint64) (*types.CommandOutcome, error)
	SessionStatus(ctx context.Context) (*types.ShellStatus, error)
	StartSession(ctx context.Context) (*types.ShellStatus, error)
	StopSession(ctx context.Context) (*types.ShellStatus, error)
	RestartSession(ctx context.Context) (*types.ShellStatus, error)
	RunInSession(ctx context.Context, command string) (*types.CommandOutcome, error)
	Which(ctx context.Context, command string) (*hostexecclient.WhichResponse, error)
	MonitorProcess(ctx context.Context, pid int) (*types.CommandOutcome, error)
}

type daemonClientAdapter struct {
	*hostexecclient.Client
}

func newDaemonClient() (commandClient, error) {
	client, err := hostexecclient.New()
	if err != nil {
		return nil, err
	}
	return &daemonClientAdapter{Client: client}, nil
}

// connect builds a client and makes sure a daemon is answering.
func connect(ctx context.Context, newClient clientFactory) (commandClient, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	if err := client.EnsureDaemon(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
