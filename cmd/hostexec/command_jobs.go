package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
)

type JobsCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewJobsCommand(stdout, stderr io.Writer, newClient clientFactory) *JobsCommand {
	return &JobsCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *JobsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	jobs, err := client.ListJobs(ctx)
	if err != nil {
		return err
	}
	printJobs(c.stdout, jobs)
	return nil
}

type KillCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewKillCommand(stdout, stderr io.Writer, newClient clientFactory) *KillCommand {
	return &KillCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *KillCommand) Run(args []string) error {
	fs := flag.NewFlagSet("kill", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("kill requires a job id")
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid job id %q", fs.Arg(0))
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	terminated, err := client.TerminateJob(ctx, id)
	if err != nil {
		return err
	}
	if !terminated {
		fmt.Fprintf(c.stdout, "job %d was not running\n", id)
		return nil
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}

// PsCommand shows ps output for any pid, job or not.
type PsCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewPsCommand(stdout, stderr io.Writer, newClient clientFactory) *PsCommand {
	return &PsCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *PsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("ps", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("ps requires a pid")
	}
	pid, err := strconv.Atoi(fs.Arg(0))
	if err != nil || pid <= 0 {
		return fmt.Errorf("invalid pid %q", fs.Arg(0))
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	outcome, err := client.MonitorProcess(ctx, pid)
	if err != nil {
		return err
	}
	printOutcome(c.stdout, c.stderr, outcome)
	if outcome != nil && !outcome.Success {
		fmt.Fprintf(c.stderr, "process %d not found\n", pid)
	}
	return outcomeError(outcome)
}
