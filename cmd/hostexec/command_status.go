package main

import (
	"context"
	"flag"
	"fmt"
	"io"
)

// StatusCommand reports the daemon's health, optionally replacing a daemon
// built from a different revision than this CLI.
type StatusCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
	version   string
}

func NewStatusCommand(stdout, stderr io.Writer, newClient clientFactory, version string) *StatusCommand {
	return &StatusCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
		version:   version,
	}
}

func (c *StatusCommand) Run(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	restart := fs.Bool("restart-daemon", false, "restart the daemon if its version differs from this CLI")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	client, err := c.newClient()
	if err != nil {
		return err
	}
	if *restart {
		err = client.EnsureDaemonVersion(ctx, c.version, true)
	} else {
		err = client.EnsureDaemon(ctx)
	}
	if err != nil {
		return err
	}
	health, err := client.Health(ctx)
	if err != nil {
		return err
	}
	state := okStyle.Render("ok")
	if !health.OK {
		state = badStyle.Render("unhealthy")
	}
	fmt.Fprintf(c.stdout, "daemon %s version=%s pid=%d\n", state, health.Version, health.PID)
	if health.Version != c.version {
		fmt.Fprintf(c.stderr, "note: daemon version %s differs from cli %s (use --restart-daemon)\n", health.Version, c.version)
	}
	return nil
}
