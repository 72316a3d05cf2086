package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/maid/internal/execshell"
	"github.com/tyemirov/maid/internal/executor"
)

const (
	testApplicationMaidfile = `[tasks.build]
info = "build it"
script = "echo %{arg.1}"

[tasks.broken]
script = "false"
`
	testVersionValue = "v9.9.9 (abc1234)"
)

type recordingCommandRunner struct {
	mutex     sync.Mutex
	commands  []execshell.ShellCommand
	exitCodes map[string]int
}

func (runner *recordingCommandRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()
	runner.commands = append(runner.commands, command)
	return execshell.ExecutionResult{ExitCode: runner.exitCodes[command.Name]}, nil
}

type applicationHarness struct {
	application      *Application
	runner           *recordingCommandRunner
	output           *bytes.Buffer
	workingDirectory string
}

func newApplicationHarness(t *testing.T, maidfileContents string) applicationHarness {
	t.Helper()
	workingDirectory := t.TempDir()
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), filepath.Join(workingDirectory, "maidfile"), []byte(maidfileContents), 0o644))
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, workingDirectory)
	t.Setenv(noColorEnvironmentVariableConstant, "1")
	t.Chdir(workingDirectory)

	runner := &recordingCommandRunner{exitCodes: map[string]int{}}
	application := NewApplication()
	application.commandRunner = runner
	application.versionResolver = func() string { return testVersionValue }
	application.exitFunction = func(int) {}

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(io.Discard)
	return applicationHarness{application: application, runner: runner, output: output, workingDirectory: workingDirectory}
}

func (harness applicationHarness) execute(arguments ...string) error {
	harness.application.rootCommand.SetArgs(arguments)
	return harness.application.rootCommand.ExecuteContext(context.Background())
}

func TestRootCommandRunsTaskWithPassThroughArguments(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)

	require.NoError(testInstance, harness.execute("build", "--release"))
	require.Len(testInstance, harness.runner.commands, 1)
	require.Equal(testInstance, "echo", harness.runner.commands[0].Name)
	require.Equal(testInstance, []string{"--release"}, harness.runner.commands[0].Details.Arguments)
	require.Contains(testInstance, harness.output.String(), "finished task successfully")
}

func TestRootCommandListsTasksWithoutArguments(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)

	require.NoError(testInstance, harness.execute())
	require.Equal(testInstance, "broken (no description)\nbuild (build it)\n", harness.output.String())
	require.Empty(testInstance, harness.runner.commands)
}

func TestRootCommandReportsTaskExitCode(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)
	harness.runner.exitCodes["false"] = 3

	executionError := harness.execute("broken")
	var failedError executor.TaskFailedError
	require.ErrorAs(testInstance, executionError, &failedError)
	require.Equal(testInstance, "broken", failedError.TaskName)
	require.Equal(testInstance, 3, ExitCode(executionError))
}

func TestRootCommandReportsUnknownTask(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)

	executionError := harness.execute("deploy")
	var notFoundError executor.TaskNotFoundError
	require.ErrorAs(testInstance, executionError, &notFoundError)
	require.Equal(testInstance, failureExitCodeConstant, ExitCode(executionError))
}

func TestConfigurationInitializationWritesLocalFile(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)
	expectedPath := filepath.Join(harness.workingDirectory, configurationFileNameConstant)

	require.NoError(testInstance, harness.execute("--init"))
	require.Contains(testInstance, harness.output.String(), "configuration file created at "+expectedPath)

	writtenContent, readError := afero.ReadFile(afero.NewOsFs(), expectedPath)
	require.NoError(testInstance, readError)
	embeddedContent, _ := EmbeddedDefaultConfiguration()
	require.Equal(testInstance, embeddedContent, writtenContent)

	require.Error(testInstance, harness.execute("--init"))
	require.NoError(testInstance, harness.execute("--init", "--force"))
}

func TestVersionOutputs(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "subcommand", arguments: []string{"version"}},
		{name: "flag", arguments: []string{"--version"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			harness := newApplicationHarness(subtest, testApplicationMaidfile)
			exitCodes := []int{}
			harness.application.exitFunction = func(code int) { exitCodes = append(exitCodes, code) }

			_ = harness.execute(testCase.arguments...)
			require.Contains(subtest, harness.output.String(), "maid version: "+testVersionValue)
			if testCase.name == "flag" {
				require.Equal(subtest, []int{0}, exitCodes)
			}
		})
	}
}

func TestExecutionFlagsFallBackToConfiguration(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)
	harness.application.configuration.Tasks = ApplicationTaskConfiguration{Maidfile: "tasks/maidfile", Force: true, Silent: true}

	flags := harness.application.collectExecutionFlags(harness.application.rootCommand)
	require.True(testInstance, flags.Force)
	require.True(testInstance, flags.Silent)
	require.Equal(testInstance, "tasks/maidfile", flags.MaidfilePath)

	require.NoError(testInstance, harness.application.rootCommand.PersistentFlags().Set("force", "false"))
	flags = harness.application.collectExecutionFlags(harness.application.rootCommand)
	require.False(testInstance, flags.Force)
	require.True(testInstance, flags.ForceSet)
}

func TestColorHonorsNoColor(testInstance *testing.T) {
	harness := newApplicationHarness(testInstance, testApplicationMaidfile)
	harness.application.configuration.Common.Color = true
	require.False(testInstance, harness.application.colorEnabled())
}
