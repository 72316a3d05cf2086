package execshell

import (
	"context"
	"errors"
	"time"

	"github.com/tyemirov/maid/internal/shellwords"
)

const emptyScriptMessageConstant = "script contains no command lines"

// ErrEmptyScript indicates that a script request carried no commands.
var ErrEmptyScript = errors.New(emptyScriptMessageConstant)

// ScriptRequest describes an ordered sequence of tokenized lines sharing one
// working directory, environment, and stream mode.
type ScriptRequest struct {
	Commands         []shellwords.Command
	WorkingDirectory string
	Environment      map[string]string
	StreamMode       StreamMode
}

// LineResult records the outcome of a single script line.
type LineResult struct {
	Command  ShellCommand
	ExitCode int
	Duration time.Duration
}

// ScriptResult aggregates a script run. Only the final line decides success.
type ScriptResult struct {
	Lines    []LineResult
	ExitCode int
	Duration time.Duration
}

// Succeeded reports whether the final line exited cleanly.
func (result ScriptResult) Succeeded() bool {
	return result.ExitCode == 0
}

// RunScript executes every line in order. A line that exits non-zero does not
// stop the sequence; a line that cannot be started does.
func (executor *ShellExecutor) RunScript(executionContext context.Context, request ScriptRequest) (ScriptResult, error) {
	if len(request.Commands) == 0 {
		return ScriptResult{}, ErrEmptyScript
	}

	startTime := time.Now()
	lineResults := make([]LineResult, 0, len(request.Commands))
	for _, tokenizedCommand := range request.Commands {
		shellCommand := ShellCommand{
			Name: tokenizedCommand.Name,
			Details: CommandDetails{
				Arguments:            tokenizedCommand.Arguments,
				WorkingDirectory:     request.WorkingDirectory,
				EnvironmentVariables: request.Environment,
				StreamMode:           request.StreamMode,
			},
		}

		executionResult, executionError := executor.Execute(executionContext, shellCommand)
		if executionError != nil {
			var failedError CommandFailedError
			if !errors.As(executionError, &failedError) {
				return ScriptResult{Lines: lineResults, Duration: time.Since(startTime)}, executionError
			}
		}
		lineResults = append(lineResults, LineResult{Command: shellCommand, ExitCode: executionResult.ExitCode, Duration: executionResult.Duration})
	}

	return ScriptResult{
		Lines:    lineResults,
		ExitCode: lineResults[len(lineResults)-1].ExitCode,
		Duration: time.Since(startTime),
	}, nil
}
