package executor

import (
	"errors"
	"fmt"
	"strings"
)

const (
	taskNotFoundTemplateConstant            = "Could not find the task '%s'. Does it exist?"
	remoteTaskNotFoundTemplateConstant      = "Could not find the remote task '%s'. Does it exist?"
	remoteOnlyTemplateConstant              = "Task '%s' is remote only."
	dependencyCycleTemplateConstant         = "dependency cycle detected: %s"
	dependencyChainSeparatorConstant        = " -> "
	scriptParseTemplateConstant             = "Script could not be parsed into args: task %s line %d: %v"
	taskFailedTemplateConstant              = "task %s exited with status code %d"
	scriptRunnerRequiredMessageConstant     = "script runner not configured"
	remoteDispatcherRequiredMessageConstant = "remote dispatcher not configured"
)

// ErrScriptRunnerNotConfigured indicates the executor was built without a process runner.
var ErrScriptRunnerNotConfigured = errors.New(scriptRunnerRequiredMessageConstant)

// ErrRemoteDispatcherNotConfigured indicates a remote run was requested without a dispatcher.
var ErrRemoteDispatcherNotConfigured = errors.New(remoteDispatcherRequiredMessageConstant)

// TaskNotFoundError reports an unknown task or dependency name.
type TaskNotFoundError struct {
	TaskName string
}

// Error describes the missing task.
func (notFoundError TaskNotFoundError) Error() string {
	return fmt.Sprintf(taskNotFoundTemplateConstant, notFoundError.TaskName)
}

// RemoteConfigurationMissingError reports a remote run of a task without remote settings.
type RemoteConfigurationMissingError struct {
	TaskName string
}

// Error describes the missing remote configuration.
func (missingError RemoteConfigurationMissingError) Error() string {
	return fmt.Sprintf(remoteTaskNotFoundTemplateConstant, missingError.TaskName)
}

// RemoteOnlyTaskError reports a local run of an exclusive remote task.
type RemoteOnlyTaskError struct {
	TaskName string
}

// Error describes the refused invocation.
func (remoteOnlyError RemoteOnlyTaskError) Error() string {
	return fmt.Sprintf(remoteOnlyTemplateConstant, remoteOnlyError.TaskName)
}

// DependencyCycleError reports a task that depends on itself, directly or transitively.
type DependencyCycleError struct {
	Chain []string
}

// Error renders the cycle as a chain of task names.
func (cycleError DependencyCycleError) Error() string {
	return fmt.Sprintf(dependencyCycleTemplateConstant, strings.Join(cycleError.Chain, dependencyChainSeparatorConstant))
}

// ScriptParseError reports a script line the tokenizer rejected.
type ScriptParseError struct {
	TaskName   string
	LineNumber int
	Line       string
	Cause      error
}

// Error describes the rejected line.
func (parseError ScriptParseError) Error() string {
	return fmt.Sprintf(scriptParseTemplateConstant, parseError.TaskName, parseError.LineNumber, parseError.Cause)
}

// Unwrap exposes the tokenizer failure.
func (parseError ScriptParseError) Unwrap() error {
	return parseError.Cause
}

// TaskFailedError reports a script whose final line exited non-zero.
type TaskFailedError struct {
	TaskName string
	ExitCode int
}

// Error describes the failed task.
func (failedError TaskFailedError) Error() string {
	return fmt.Sprintf(taskFailedTemplateConstant, failedError.TaskName, failedError.ExitCode)
}
