//go:build windows

package runner

import (
	"errors"
	"os"
	"os/exec"
)

func ConfigureProcessGroup(cmd *exec.Cmd) {}

func KillProcessGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
