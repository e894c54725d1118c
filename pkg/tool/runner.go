// Package tool runs the external programs drydock leans on: codesign and
// assetutil for canonicalizing Apple build products, and the AOT linker the
// patch pipeline drives. Everything goes through the Runner interface so the
// callers can be exercised without spawning processes.
package tool

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Cmd describes a single external invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string // working directory; empty means inherit
}

// Output captures what an invocation produced. ExitCode is -1 when the
// process never started.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands and resolves tool paths.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Output, error)
	LookPath(name string) (string, error)
}

// ExecRunner is the os/exec backed Runner used outside of tests.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (*ExecRunner) Run(ctx context.Context, c Cmd) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
		}
	}
	return out, err
}

func (*ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
