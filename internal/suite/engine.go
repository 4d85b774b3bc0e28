package suite

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Engine spec keywords and command-template placeholders.
const (
	EngineReplay = "replay"

	ScenarioPlaceholder = "{{scenario}}"
	OutputPlaceholder   = "{{output}}"
)

// Engine executes a scenario document and reports where the resulting
// trace was written. Implementations never interpret the document;
// they only carry it to something that does.
type Engine interface {
	Run(ctx context.Context, scenarioPath, workDir string) (tracePath string, err error)
}

// ReplayEngine short-circuits execution by handing back a pre-recorded
// trace. Comparing a recording against its own replay exercises the
// whole pipeline and must score a perfect match, which makes this the
// engine of choice for self-validation and tests.
type ReplayEngine struct {
	Trace string
}

func (e *ReplayEngine) Run(ctx context.Context, scenarioPath, workDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(e.Trace); err != nil {
		return "", fmt.Errorf("replay trace: %w", err)
	}
	return e.Trace, nil
}

// CommandEngine spawns an external simulator. Argv is the command line
// with {{scenario}} and {{output}} placeholders; the engine expands
// them, runs the process in the case work directory, and checks that
// the output trace appeared. Anything the simulator prints on stderr
// is folded into the error on failure.
type CommandEngine struct {
	Argv []string
}

// ParseEngine resolves a case's engine spec. refTrace is the trace the
// replay engine plays back.
func ParseEngine(spec, refTrace string) (Engine, error) {
	switch spec {
	case "", EngineReplay:
		return &ReplayEngine{Trace: refTrace}, nil
	}
	argv := strings.Fields(spec)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty engine command")
	}
	if err := validateEngineSpec(spec); err != nil {
		return nil, err
	}
	return &CommandEngine{Argv: argv}, nil
}

func (e *CommandEngine) Run(ctx context.Context, scenarioPath, workDir string) (string, error) {
	output := filepath.Join(workDir, "candidate.osi")
	argv := make([]string, len(e.Argv))
	for i, a := range e.Argv {
		a = strings.ReplaceAll(a, ScenarioPlaceholder, scenarioPath)
		a = strings.ReplaceAll(a, OutputPlaceholder, output)
		argv[i] = a
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("engine %s: %w%s", argv[0], err, stderrTail(&stderr))
	}
	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("engine %s exited cleanly but wrote no trace at %s", argv[0], output)
	}
	return output, nil
}

// stderrTail keeps engine errors readable: simulators tend to dump
// pages of log output before dying.
func stderrTail(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return ""
	}
	const max = 512
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return ": " + s
}
