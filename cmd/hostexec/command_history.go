package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hostexec/internal/types"
)

type HistoryCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewHistoryCommand(stdout, stderr io.Writer, newClient clientFactory) *HistoryCommand {
	return &HistoryCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *HistoryCommand) Run(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", 0, "number of entries to show (0 uses the daemon default)")
	search := fs.String("search", "", "case-insensitive substring to search for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("limit must not be negative")
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	var entries []types.HistoryEntry
	if query := strings.TrimSpace(*search); query != "" {
		entries, err = client.SearchHistory(ctx, query)
	} else {
		entries, err = client.History(ctx, *limit)
	}
	if err != nil {
		return err
	}
	printHistory(c.stdout, entries)
	return nil
}

type RerunCommand struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient clientFactory
}

func NewRerunCommand(stdout, stderr io.Writer, newClient clientFactory) *RerunCommand {
	return &RerunCommand{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newClient,
	}
}

func (c *RerunCommand) Run(args []string) error {
	fs := flag.NewFlagSet("rerun", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("rerun requires a history id")
	}
	id, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid history id %q", fs.Arg(0))
	}

	ctx := context.Background()
	client, err := connect(ctx, c.newClient)
	if err != nil {
		return err
	}
	outcome, err := client.Rerun(ctx, id)
	if err != nil {
		printPartialOutput(c.stdout, c.stderr, err)
		return err
	}
	printOutcome(c.stdout, c.stderr, outcome)
	return outcomeError(outcome)
}
