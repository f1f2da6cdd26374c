package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"hostexec/internal/clipboard"
	"hostexec/internal/types"
)

const (
	version = "dev"

	commandCellWidth = 60
	timeLayout       = "2006-01-02 15:04:05"
)

type copyFunc func(ctx context.Context, text string) (clipboard.Method, error)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// exitStatusError makes the CLI exit with a command's own exit code.
type exitStatusError struct {
	code int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func outcomeError(outcome *types.CommandOutcome) error {
	if outcome == nil || outcome.Success {
		return nil
	}
	code := outcome.ExitCode
	if code <= 0 {
		code = 1
	}
	return &exitStatusError{code: code}
}

func printOutcome(stdout, stderr io.Writer, outcome *types.CommandOutcome) {
	if outcome == nil {
		return
	}
	writeStream(stdout, outcome.Stdout)
	writeStream(stderr, outcome.Stderr)
}

func writeStream(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(w, text)
}

func printJobs(output io.Writer, jobs []types.JobSummary) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tEXIT\tSTARTED\tCOMMAND")
	for _, job := range jobs {
		exit := "-"
		if job.ExitCode != nil {
			exit = strconv.Itoa(*job.ExitCode)
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n",
			job.ID,
			styleJobStatus(job.Status),
			exit,
			formatTime(job.StartedAt),
			truncateCell(joinCommand(job.Command, job.Args), commandCellWidth),
		)
	}
	_ = writer.Flush()
}

func printHistory(output io.Writer, entries []types.HistoryEntry) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTIME\tRESULT\tEXIT\tCOMMAND\tCWD")
	for _, entry := range entries {
		result := okStyle.Render(padStatus("ok"))
		if !entry.Success {
			result = badStyle.Render(padStatus("failed"))
		}
		cwd := entry.Cwd
		if cwd == "" {
			cwd = "-"
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%d\t%s\t%s\n",
			entry.ID,
			formatTime(entry.Timestamp),
			result,
			entry.ExitCode,
			truncateCell(joinCommand(entry.Command, entry.Args), commandCellWidth),
			cwd,
		)
	}
	_ = writer.Flush()
}

func printShellStatus(output io.Writer, status *types.ShellStatus) {
	if status == nil {
		return
	}
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintf(writer, "state\t%s\n", styleShellState(status.State))
	fmt.Fprintf(writer, "shell\t%s\n", status.Shell)
	pid := "-"
	if status.PID > 0 {
		pid = strconv.Itoa(status.PID)
	}
	fmt.Fprintf(writer, "pid\t%s\n", pid)
	started := "-"
	if status.StartedAt != nil {
		started = formatTime(*status.StartedAt)
	}
	fmt.Fprintf(writer, "started\t%s\n", started)
	fmt.Fprintf(writer, "commands\t%d\n", status.Commands)
	fmt.Fprintf(writer, "timeout\t%gs\n", status.TimeoutSeconds)
	_ = writer.Flush()
}

// padStatus pads before styling so escape codes do not skew tabwriter
// columns.
func padStatus(status string) string {
	return fmt.Sprintf("%-9s", status)
}

func styleJobStatus(status types.JobStatus) string {
	text := padStatus(string(status))
	switch status {
	case types.JobStatusRunning:
		return okStyle.Render(text)
	case types.JobStatusError:
		return badStyle.Render(text)
	default:
		return warnStyle.Render(text)
	}
}

func styleShellState(state types.ShellState) string {
	switch state {
	case types.ShellStateRunning:
		return okStyle.Render(string(state))
	case types.ShellStateTimedOut:
		return badStyle.Render(string(state))
	default:
		return warnStyle.Render(string(state))
	}
}

func joinCommand(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// truncateCell flattens text to one printable line of at most width cells.
func truncateCell(text string, width int) string {
	text = ansi.Strip(text)
	text = strings.Join(strings.Fields(text), " ")
	return runewidth.Truncate(text, width, "…")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env %q: want KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	var status *exitStatusError
	if errors.As(err, &status) {
		os.Exit(status.code)
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}

	exe, err := os.Executable()
	if err == nil {
		file, err := os.Open(exe)
		if err == nil {
			defer file.Close()
			hasher := sha256.New()
			if _, err := io.Copy(hasher, file); err == nil {
				sum := hasher.Sum(nil)
				return fmt.Sprintf("bin-%x", sum[:6])
			}
		}
	}

	return version
}
