package main

import (
	"fmt"
	"os"
)

const usageText = `hostexec runs shell commands through a local daemon.

Usage:
  hostexec <command> [flags]

Commands:
  daemon    run the background daemon
  config    print configuration (effective or defaults)
  exec      run a command and wait for it
  spawn     start a detached background job
  jobs      list background jobs
  kill      terminate a background job
  history   show or search command history
  rerun     run a history entry again
  session   drive the interactive shell (start|stop|restart|status|run)
  which     resolve a command on the daemon's PATH
  ps        show ps output for a pid
  status    show daemon health (--restart-daemon replaces a stale daemon)
  help      show help

Flags:
  -h, --help   show help

Daemon flags:
  --background    run in background (logs to file)
  --force         stop any running daemon before starting
  --kill          stop any running daemon and exit

Examples:
  hostexec exec --timeout 30 -- ls -la /tmp
  hostexec exec --async --env FOO=bar -- sh -c 'echo $FOO'
  hostexec spawn --cwd ~/src -- make watch
  hostexec history --search make
  hostexec session run 'cd /tmp && ls'
  hostexec config --default --format toml
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
