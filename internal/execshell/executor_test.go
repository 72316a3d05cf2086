package execshell_test

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/maid/internal/execshell"
	"github.com/tyemirov/maid/internal/shellwords"
)

const (
	testExecutionSuccessCaseNameConstant         = "success"
	testExecutionFailureCaseNameConstant         = "failure_exit_code"
	testExecutionRunnerErrorCaseNameConstant     = "runner_error"
	testLoggerInitializationCaseNameConstant     = "logger_validation"
	testRunnerInitializationCaseNameConstant     = "runner_validation"
	testSuccessfulInitializationCaseNameConstant = "successful_initialization"
	testCommandNameConstant                      = "cargo"
	testCommandArgumentConstant                  = "build"
	testWorkingDirectoryConstant                 = "/work"
	testRunnerFailureMessageConstant             = "runner failure"
	testStartedMessageConstant                   = "Running cargo build (in /work)"
	testFailedMessageConstant                    = "cargo build (in /work) failed with exit code 1"
	testRunnerErrorMessageConstant               = "cargo build (in /work) failed: runner failure"
	testShellExecutableConstant                  = "sh"
)

type recordingCommandRunner struct {
	executionResults []execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	if runner.executionError != nil {
		return execshell.ExecutionResult{}, runner.executionError
	}
	if len(runner.executionResults) == 0 {
		return execshell.ExecutionResult{}, nil
	}
	nextResult := runner.executionResults[0]
	runner.executionResults = runner.executionResults[1:]
	return nextResult, nil
}

func TestShellExecutorInitializationValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		runner        execshell.CommandRunner
		expectError   error
		expectSuccess bool
	}{
		{
			name:        testLoggerInitializationCaseNameConstant,
			logger:      nil,
			runner:      &recordingCommandRunner{},
			expectError: execshell.ErrLoggerNotConfigured,
		},
		{
			name:        testRunnerInitializationCaseNameConstant,
			logger:      zap.NewNop(),
			runner:      nil,
			expectError: execshell.ErrCommandRunnerNotConfigured,
		},
		{
			name:          testSuccessfulInitializationCaseNameConstant,
			logger:        zap.NewNop(),
			runner:        &recordingCommandRunner{},
			expectSuccess: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor, creationError := execshell.NewShellExecutor(testCase.logger, testCase.runner, false)
			if testCase.expectSuccess {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, executor)
			} else {
				require.Error(testInstance, creationError)
				require.ErrorIs(testInstance, creationError, testCase.expectError)
			}
		})
	}
}

func TestShellExecutorExecuteBehavior(testInstance *testing.T) {
	testCases := []struct {
		name             string
		runnerResult     execshell.ExecutionResult
		runnerError      error
		expectErrorType  any
		expectedMessages []string
		expectedLevels   []zapcore.Level
	}{
		{
			name:             testExecutionSuccessCaseNameConstant,
			runnerResult:     execshell.ExecutionResult{ExitCode: 0, Duration: time.Second},
			expectedMessages: []string{testStartedMessageConstant, "Completed cargo build (in /work) after 1s"},
			expectedLevels:   []zapcore.Level{zap.DebugLevel, zap.DebugLevel},
		},
		{
			name:             testExecutionFailureCaseNameConstant,
			runnerResult:     execshell.ExecutionResult{ExitCode: 1},
			expectErrorType:  execshell.CommandFailedError{},
			expectedMessages: []string{testStartedMessageConstant, testFailedMessageConstant},
			expectedLevels:   []zapcore.Level{zap.DebugLevel, zap.WarnLevel},
		},
		{
			name:             testExecutionRunnerErrorCaseNameConstant,
			runnerError:      errors.New(testRunnerFailureMessageConstant),
			expectErrorType:  execshell.CommandExecutionError{},
			expectedMessages: []string{testStartedMessageConstant, testRunnerErrorMessageConstant},
			expectedLevels:   []zapcore.Level{zap.DebugLevel, zap.ErrorLevel},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			logger := zap.New(observerCore)

			recordingRunner := &recordingCommandRunner{
				executionResults: []execshell.ExecutionResult{testCase.runnerResult},
				executionError:   testCase.runnerError,
			}

			shellExecutor, creationError := execshell.NewShellExecutor(logger, recordingRunner, true)
			require.NoError(testInstance, creationError)

			command := execshell.ShellCommand{
				Name:    testCommandNameConstant,
				Details: execshell.CommandDetails{Arguments: []string{testCommandArgumentConstant}, WorkingDirectory: testWorkingDirectoryConstant},
			}
			_, executionError := shellExecutor.Execute(context.Background(), command)

			if testCase.expectErrorType != nil {
				require.Error(testInstance, executionError)
				require.IsType(testInstance, testCase.expectErrorType, executionError)
			} else {
				require.NoError(testInstance, executionError)
			}

			capturedLogs := observerLogs.All()
			require.Len(testInstance, capturedLogs, len(testCase.expectedMessages))
			for logIndex := range capturedLogs {
				require.Equal(testInstance, testCase.expectedMessages[logIndex], capturedLogs[logIndex].Message)
				require.Equal(testInstance, testCase.expectedLevels[logIndex], capturedLogs[logIndex].Level)
			}
		})
	}
}

func TestShellExecutorRejectsMissingCommandName(testInstance *testing.T) {
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), &recordingCommandRunner{}, false)
	require.NoError(testInstance, creationError)

	_, executionError := shellExecutor.Execute(context.Background(), execshell.ShellCommand{})
	require.ErrorIs(testInstance, executionError, execshell.ErrCommandNameMissing)
}

func TestRunScriptJudgesSuccessByFinalLine(testInstance *testing.T) {
	testCases := []struct {
		name              string
		exitCodes         []int
		expectedExitCode  int
		expectedSucceeded bool
	}{
		{name: "all_lines_succeed", exitCodes: []int{0, 0}, expectedExitCode: 0, expectedSucceeded: true},
		{name: "earlier_line_fails", exitCodes: []int{2, 0}, expectedExitCode: 0, expectedSucceeded: true},
		{name: "final_line_fails", exitCodes: []int{0, 3}, expectedExitCode: 3, expectedSucceeded: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runnerResults := make([]execshell.ExecutionResult, 0, len(testCase.exitCodes))
			for _, exitCode := range testCase.exitCodes {
				runnerResults = append(runnerResults, execshell.ExecutionResult{ExitCode: exitCode})
			}
			recordingRunner := &recordingCommandRunner{executionResults: runnerResults}
			shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), recordingRunner, false)
			require.NoError(testInstance, creationError)

			scriptResult, scriptError := shellExecutor.RunScript(context.Background(), execshell.ScriptRequest{
				Commands: []shellwords.Command{
					{Name: "make", Arguments: []string{"deps"}},
					{Name: "make", Arguments: []string{"all"}},
				},
				WorkingDirectory: testWorkingDirectoryConstant,
				Environment:      map[string]string{"MODE": "release"},
				StreamMode:       execshell.StreamSuppressed,
			})
			require.NoError(testInstance, scriptError)
			require.Len(testInstance, scriptResult.Lines, 2)
			require.Equal(testInstance, testCase.expectedExitCode, scriptResult.ExitCode)
			require.Equal(testInstance, testCase.expectedSucceeded, scriptResult.Succeeded())

			require.Len(testInstance, recordingRunner.recordedCommands, 2)
			for _, recordedCommand := range recordingRunner.recordedCommands {
				require.Equal(testInstance, testWorkingDirectoryConstant, recordedCommand.Details.WorkingDirectory)
				require.Equal(testInstance, execshell.StreamSuppressed, recordedCommand.Details.StreamMode)
				require.Equal(testInstance, "release", recordedCommand.Details.EnvironmentVariables["MODE"])
			}
		})
	}
}

func TestRunScriptStopsWhenCommandCannotStart(testInstance *testing.T) {
	recordingRunner := &recordingCommandRunner{executionError: errors.New(testRunnerFailureMessageConstant)}
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), recordingRunner, false)
	require.NoError(testInstance, creationError)

	_, scriptError := shellExecutor.RunScript(context.Background(), execshell.ScriptRequest{
		Commands: []shellwords.Command{{Name: "missing"}, {Name: "never"}},
	})
	var executionError execshell.CommandExecutionError
	require.ErrorAs(testInstance, scriptError, &executionError)
	require.Len(testInstance, recordingRunner.recordedCommands, 1)
}

func TestRunScriptRejectsEmptyScript(testInstance *testing.T) {
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), &recordingCommandRunner{}, false)
	require.NoError(testInstance, creationError)

	_, scriptError := shellExecutor.RunScript(context.Background(), execshell.ScriptRequest{})
	require.ErrorIs(testInstance, scriptError, execshell.ErrEmptyScript)
}

func TestOSCommandRunnerUsesWorkingDirectoryAndEnvironment(testInstance *testing.T) {
	if _, lookupError := exec.LookPath(testShellExecutableConstant); lookupError != nil {
		testInstance.Skip("sh is not available")
	}

	workingDirectory := testInstance.TempDir()
	var standardOutput bytes.Buffer
	runner := &execshell.OSCommandRunner{StandardOutput: &standardOutput}

	executionResult, runError := runner.Run(context.Background(), execshell.ShellCommand{
		Name: testShellExecutableConstant,
		Details: execshell.CommandDetails{
			Arguments:            []string{"-c", "pwd; printf %s \"$MAID_TEST_VALUE\""},
			WorkingDirectory:     workingDirectory,
			EnvironmentVariables: map[string]string{"MAID_TEST_VALUE": "present"},
		},
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 0, executionResult.ExitCode)
	require.Contains(testInstance, standardOutput.String(), "present")
}

func TestOSCommandRunnerReportsExitCode(testInstance *testing.T) {
	if _, lookupError := exec.LookPath(testShellExecutableConstant); lookupError != nil {
		testInstance.Skip("sh is not available")
	}

	runner := execshell.NewOSCommandRunner()
	executionResult, runError := runner.Run(context.Background(), execshell.ShellCommand{
		Name:    testShellExecutableConstant,
		Details: execshell.CommandDetails{Arguments: []string{"-c", "exit 7"}, StreamMode: execshell.StreamSuppressed},
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 7, executionResult.ExitCode)
}

func TestOSCommandRunnerReportsMissingExecutable(testInstance *testing.T) {
	runner := execshell.NewOSCommandRunner()
	_, runError := runner.Run(context.Background(), execshell.ShellCommand{
		Name:    "maid-definitely-missing-executable",
		Details: execshell.CommandDetails{StreamMode: execshell.StreamSuppressed},
	})
	require.Error(testInstance, runError)
}
