package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"hostexec/internal/types"
)

const sessionUsage = "session requires an action: start|stop|restart|status|run <command>"

type SessionCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewSessionCommand(stdout, stderr io.Writer, newClient clientFactory) *SessionCommand {
	return &SessionCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *SessionCommand) Run(args []string) error {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New(sessionUsage)
	}
	action := strings.ToLower(fs.Arg(0))
	rest := fs.Args()[1:]

	var call func(ctx context.Context, client commandClient) (*types.ShellStatus, error)
	switch action {
	case "start":
		call = func(ctx context.Context, client commandClient) (*types.ShellStatus, error) { return client.StartSession(ctx) }
	case "stop":
		call = func(ctx context.Context, client commandClient) (*types.ShellStatus, error) { return client.StopSession(ctx) }
	case "restart":
		call = func(ctx context.Context, client commandClient) (*types.ShellStatus, error) { return client.RestartSession(ctx) }
	case "status":
		call = func(ctx context.Context, client commandClient) (*types.ShellStatus, error) { return client.SessionStatus(ctx) }
	case "run":
		if len(rest) == 0 {
			return errors.New("session run requires a command")
		}
	default:
		return fmt.Errorf("unknown session action %q; %s", action, sessionUsage)
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	if action == "run" {
		outcome, err := client.RunInSession(ctx, strings.Join(rest, " "))
		if err != nil {
			printPartialOutput(c.stdout, c.stderr, err)
			return err
		}
		printOutcome(c.stdout, c.stderr, outcome)
		return nil
	}
	status, err := call(ctx, client)
	if err != nil {
		return err
	}
	printShellStatus(c.stdout, status)
	return nil
}

type WhichCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewWhichCommand(stdout, stderr io.Writer, newClient clientFactory) *WhichCommand {
	return &WhichCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *WhichCommand) Run(args []string) error {
	fs := flag.NewFlagSet("which", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("which requires a command name")
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	resp, err := client.Which(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if !resp.Found {
		return &exitStatusError{code: 1}
	}
	fmt.Fprintln(c.stdout, resp.Path)
	return nil
}
