package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	hostexecclient "hostexec/internal/client"
)

const clipboardTimeout = 5 * time.Second

type ExecCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
	copyText  copyFunc
}

func NewExecCommand(stdout, stderr io.Writer, newClient clientFactory, copyText copyFunc) *ExecCommand {
	return &ExecCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
		copyText:  copyText,
	}
}

func (c *ExecCommand) Run(args []string) error {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	async := fs.Bool("async", false, "run on the daemon's asynchronous path")
	cwd := fs.String("cwd", "", "working directory (defaults to the current directory)")
	mergeStderr := fs.Bool("merge-stderr", false, "collect stderr into stdout")
	timeout := fs.Float64("timeout", 0, "timeout in seconds (0 uses the daemon default)")
	copyOut := fs.Bool("copy", false, "copy stdout to the clipboard")
	var env stringList
	fs.Var(&env, "env", "environment override KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := buildExecRequest(fs.Args(), *cwd, env)
	if err != nil {
		return err
	}
	if *timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	req.Timeout = *timeout
	req.MergeStderr = *mergeStderr

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	run := client.Exec
	if *async {
		run = client.ExecAsync
	}
	outcome, err := run(ctx, req)
	if err != nil {
		printPartialOutput(c.stdout, c.stderr, err)
		return err
	}
	printOutcome(c.stdout, c.stderr, outcome)
	if *copyOut && c.copyText != nil {
		copyCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
		method, err := c.copyText(copyCtx, outcome.Stdout)
		cancel()
		if err != nil {
			fmt.Fprintf(c.stderr, "copy failed: %v\n", err)
		} else {
			fmt.Fprintf(c.stderr, "copied stdout to clipboard (%s)\n", method)
		}
	}
	return outcomeError(outcome)
}

type SpawnCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewSpawnCommand(stdout, stderr io.Writer, newClient clientFactory) *SpawnCommand {
	return &SpawnCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *SpawnCommand) Run(args []string) error {
	fs := flag.NewFlagSet("spawn", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	cwd := fs.String("cwd", "", "working directory (defaults to the current directory)")
	var env stringList
	fs.Var(&env, "env", "environment override KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := buildExecRequest(fs.Args(), *cwd, env)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	job, err := client.StartJob(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, job.ID)
	return nil
}

func buildExecRequest(positional []string, cwd string, env []string) (hostexecclient.ExecRequest, error) {
	if len(positional) < 1 || positional[0] == "" {
		return hostexecclient.ExecRequest{}, errors.New("a command is required")
	}
	overrides, err := parseEnvPairs(env)
	if err != nil {
		return hostexecclient.ExecRequest{}, err
	}
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	return hostexecclient.ExecRequest{
		Command: positional[0],
		Args:    append([]string(nil), positional[1:]...),
		Cwd:     cwd,
		Env:     overrides,
	}, nil
}

// printPartialOutput shows what a timed out command wrote before it was
// killed.
func printPartialOutput(stdout, stderr io.Writer, err error) {
	var apiErr *hostexecclient.APIError
	if !errors.As(err, &apiErr) || !apiErr.Partial {
		return
	}
	writeStream(stdout, apiErr.Stdout)
	writeStream(stderr, apiErr.Stderr)
}
