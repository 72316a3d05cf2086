package execshell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"
)

// OSCommandRunner spawns real processes through os/exec.
type OSCommandRunner struct {
	StandardInput  io.Reader
	StandardOutput io.Writer
	StandardError  io.Writer
}

// NewOSCommandRunner constructs a runner attached to the process's standard streams.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{
		StandardInput:  os.Stdin,
		StandardOutput: os.Stdout,
		StandardError:  os.Stderr,
	}
}

// Run starts the command in its working directory and waits for it to exit.
// A non-zero exit is reported through ExecutionResult, not as an error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	process := exec.CommandContext(executionContext, command.Name, command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)

	if command.Details.StreamMode == StreamInherited {
		process.Stdin = runner.StandardInput
		process.Stdout = runner.StandardOutput
		process.Stderr = runner.StandardError
	}

	startTime := time.Now()
	runError := process.Run()
	elapsed := time.Since(startTime)

	if runError != nil {
		var exitError *exec.ExitError
		if errors.As(runError, &exitError) {
			return ExecutionResult{ExitCode: exitError.ExitCode(), Duration: elapsed}, nil
		}
		return ExecutionResult{}, runError
	}
	return ExecutionResult{ExitCode: 0, Duration: elapsed}, nil
}

func mergeEnvironment(baseEnvironment []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return baseEnvironment
	}
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := make([]string, 0, len(baseEnvironment)+len(keys))
	merged = append(merged, baseEnvironment...)
	for _, key := range keys {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}
