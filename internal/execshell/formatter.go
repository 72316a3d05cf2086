package execshell

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	startedMessageTemplateConstant          = "Running %s (in %s)"
	completedMessageTemplateConstant        = "Completed %s (in %s) after %s"
	failedMessageTemplateConstant           = "%s (in %s) failed with exit code %d"
	executionFailureMessageTemplateConstant = "%s (in %s) failed: %v"
)

// CommandMessageFormatter renders human readable command lifecycle messages.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to start.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplateConstant, formatter.describeCommand(command), command.Details.WorkingDirectory)
}

// BuildSuccessMessage describes a command that exited cleanly.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand, result ExecutionResult) string {
	return fmt.Sprintf(completedMessageTemplateConstant, formatter.describeCommand(command), command.Details.WorkingDirectory, humanize.FtoaWithDigits(result.Duration.Seconds(), 2)+"s")
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return fmt.Sprintf(failedMessageTemplateConstant, formatter.describeCommand(command), command.Details.WorkingDirectory, result.ExitCode)
}

// BuildExecutionFailureMessage describes a command that could not be started.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return fmt.Sprintf(executionFailureMessageTemplateConstant, formatter.describeCommand(command), command.Details.WorkingDirectory, failure)
}

func (formatter CommandMessageFormatter) describeCommand(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return command.Name
	}
	return command.Name + " " + strings.Join(command.Details.Arguments, " ")
}
