package main

import (
	"io"
	"os"

	"hostexec/internal/clipboard"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	newClient  clientFactory
	runDaemon  func(background bool) error
	killDaemon func() error
	copyText   copyFunc
	version    string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:    stdout,
		stderr:    stderr,
		newClient: newDaemonClient,
		runDaemon: runDaemonProcess,
		killDaemon: func() error {
			return killDaemonWithFactory(newDaemonClient)
		},
		copyText: clipboard.Copy,
		version:  buildVersion(),
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"daemon":  NewDaemonCommand(wiring.stderr, wiring.runDaemon, wiring.killDaemon),
		"config":  NewConfigCommand(wiring.stdout, wiring.stderr),
		"exec":    NewExecCommand(wiring.stdout, wiring.stderr, wiring.newClient, wiring.copyText),
		"spawn":   NewSpawnCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"jobs":    NewJobsCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"kill":    NewKillCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"history": NewHistoryCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"rerun":   NewRerunCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"session": NewSessionCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"which":   NewWhichCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"ps":      NewPsCommand(wiring.stdout, wiring.stderr, wiring.newClient),
		"status":  NewStatusCommand(wiring.stdout, wiring.stderr, wiring.newClient, wiring.version),
	}
}
