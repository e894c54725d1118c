// Package linker drives the external AOT linker that merges a patch's
// compiled code against a release baseline. The linker reports how much of
// the code it could link; callers compare that percentage against their
// patch-acceptance policy.
package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/drydock/pkg/archive"
	"github.com/odvcencio/drydock/pkg/logging"
	"github.com/odvcencio/drydock/pkg/tool"
)

// Exit codes follow sysexits conventions.
const (
	ExitOK       = 0
	ExitSoftware = 70
)

// DebugArchiveName is the fixed name of the zipped debug-info artifact
// written into the build directory.
const DebugArchiveName = "patch-debug.zip"

// State tracks one link invocation.
type State int

const (
	StateNotStarted            State = iota
	StateCheckingPrerequisites       // verifying input artifacts exist
	StateLinking                     // external linker running
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateCheckingPrerequisites:
		return "checking prerequisites"
	case StateLinking:
		return "linking"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options names every input of one link invocation.
type Options struct {
	LinkerPath      string // the AOT tooling binary
	Base            string // baseline compiled-code artifact
	Patch           string // patch compiled-code artifact
	AnalyzeSnapshot string
	GenSnapshot     string
	Kernel          string
	Output          string
	WorkingDir      string
	BuildDir        string   // receives the debug-info archive
	ExtraArgs       []string // passed through to the linker verbatim
}

// Result is what one invocation produced. LinkPercentage is nil when the
// linker failed early or completed without reporting a metric.
type Result struct {
	ExitCode       int
	LinkPercentage *float64
}

// Orchestrator runs the linker once. Each invocation gets a fresh
// Orchestrator; State is not reset between calls.
type Orchestrator struct {
	runner tool.Runner
	opts   Options
	state  State
	log    zerolog.Logger
}

func New(runner tool.Runner, opts Options) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		opts:   opts,
		state:  StateNotStarted,
		log:    logging.GetLogger("linker"),
	}
}

// State reports where the invocation currently stands.
func (o *Orchestrator) State() State { return o.state }

// linkPercentageLine matches the metric the linker prints on completion.
var linkPercentageLine = regexp.MustCompile(`link_percentage:\s*([0-9]+(?:\.[0-9]+)?)`)

// Link verifies the input artifacts, invokes the linker, and parses the link
// percentage. A missing artifact or a linker failure yields ExitSoftware and
// a non-nil error; the caller decides whether that aborts its workflow.
//
// When the linker supports it, a temporary debug-info directory is passed
// via --dump-debug-info and always archived to <BuildDir>/patch-debug.zip,
// on failure as much as on success.
func (o *Orchestrator) Link(ctx context.Context) (Result, error) {
	o.state = StateCheckingPrerequisites
	for _, artifact := range []string{o.opts.Patch, o.opts.Base} {
		if _, err := os.Stat(artifact); err != nil {
			o.state = StateFailed
			return Result{ExitCode: ExitSoftware}, fmt.Errorf("link prerequisites: %s: %w", artifact, err)
		}
	}

	o.state = StateLinking
	args := []string{
		"link",
		"--base", o.opts.Base,
		"--patch", o.opts.Patch,
		"--analyze-snapshot", o.opts.AnalyzeSnapshot,
		"--gen-snapshot", o.opts.GenSnapshot,
		"--kernel", o.opts.Kernel,
		"--output", o.opts.Output,
	}
	args = append(args, o.opts.ExtraArgs...)

	if o.supportsDebugInfo(ctx) {
		debugDir, err := os.MkdirTemp("", "drydock-link-debug-")
		if err != nil {
			o.log.Warn().Err(err).Msg("debug-info directory unavailable, linking without it")
		} else {
			args = append(args, "--dump-debug-info", debugDir)
			defer o.archiveDebugInfo(debugDir)
		}
	}

	out, err := o.runner.Run(ctx, tool.Cmd{
		Name: o.opts.LinkerPath,
		Args: args,
		Dir:  o.opts.WorkingDir,
	})
	if err != nil {
		o.state = StateFailed
		msg := strings.TrimSpace(out.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(out.Stdout)
		}
		return Result{ExitCode: ExitSoftware}, fmt.Errorf("link: %w: %s", err, msg)
	}

	o.state = StateSucceeded
	return Result{ExitCode: ExitOK, LinkPercentage: parseLinkPercentage(out.Stdout)}, nil
}

// supportsDebugInfo probes the linker's help text for the dump flag. Older
// linkers do not have it.
func (o *Orchestrator) supportsDebugInfo(ctx context.Context) bool {
	out, err := o.runner.Run(ctx, tool.Cmd{
		Name: o.opts.LinkerPath,
		Args: []string{"link", "--help"},
	})
	if err != nil {
		return false
	}
	return strings.Contains(out.Stdout+out.Stderr, "--dump-debug-info")
}

// archiveDebugInfo zips the debug directory into the build directory and
// removes the original. Runs deferred so it covers every exit path.
func (o *Orchestrator) archiveDebugInfo(debugDir string) {
	defer os.RemoveAll(debugDir)

	if err := os.MkdirAll(o.opts.BuildDir, 0o755); err != nil {
		o.log.Warn().Err(err).Msg("debug-info archive skipped")
		return
	}
	zipPath := filepath.Join(o.opts.BuildDir, DebugArchiveName)
	if err := archive.CreateFromDir(zipPath, debugDir); err != nil {
		o.log.Warn().Err(err).Str("path", zipPath).Msg("debug-info archive failed")
		return
	}
	o.log.Debug().Str("path", zipPath).Msg("debug info archived")
}

// parseLinkPercentage extracts the last reported percentage, nil when the
// linker printed none.
func parseLinkPercentage(stdout string) *float64 {
	matches := linkPercentageLine.FindAllStringSubmatch(stdout, -1)
	if len(matches) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return nil
	}
	return &v
}
