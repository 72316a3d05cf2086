package remote_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/maid/cmd/cli/remote"
	"github.com/tyemirov/maid/internal/executor"
	"github.com/tyemirov/maid/internal/maidfile"
	dispatch "github.com/tyemirov/maid/internal/remote"
	"github.com/tyemirov/maid/internal/utils"
	"github.com/tyemirov/maid/pkg/taskrunner"
)

const (
	testProjectRootConstant = "/work"
	testRemoteMaidfile      = `[project]
name = "demo"

[project.server]
token = "secret"

[project.server.address]
host = "worker.local"
port = 3500
tls = false

[tasks.build]
info = "Build remotely"
script = "make"

[tasks.build.remote]
image = "golang:1.25"
push = ["src"]

[tasks.test]
script = "go test ./..."
`
	testLocalMaidfile = `[tasks.test]
script = "go test ./..."
`
)

type stubHealthChecker struct {
	report    dispatch.HealthReport
	err       error
	endpoints []dispatch.Endpoints
}

func (checker *stubHealthChecker) Check(_ context.Context, endpoints dispatch.Endpoints) (dispatch.HealthReport, error) {
	checker.endpoints = append(checker.endpoints, endpoints)
	return checker.report, checker.err
}

type recordingRunner struct {
	requests []taskrunner.RunRequest
}

func (runner *recordingRunner) Run(_ context.Context, request taskrunner.RunRequest) (executor.Outcome, error) {
	runner.requests = append(runner.requests, request)
	return executor.Outcome{}, nil
}

type testHarness struct {
	builder       *remote.CommandBuilder
	healthChecker *stubHealthChecker
	runner        *recordingRunner
}

func newHarness(t *testing.T, contents string) testHarness {
	t.Helper()
	fileSystem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fileSystem, filepath.Join(testProjectRootConstant, maidfile.DefaultFileName), []byte(contents), 0o644))

	logger := zaptest.NewLogger(t)
	healthChecker := &stubHealthChecker{}
	runner := &recordingRunner{}
	builder := &remote.CommandBuilder{
		LoggerProvider: func() *zap.Logger { return logger },
		DependenciesBuilder: func(command *cobra.Command) (taskrunner.DependenciesResult, error) {
			return taskrunner.BuildDependencies(
				taskrunner.DependenciesConfig{
					LoggerProvider: func() *zap.Logger { return logger },
					FileSystem:     fileSystem,
					HealthChecker:  healthChecker,
				},
				taskrunner.DependenciesOptions{
					Command:          command,
					WorkingDirectory: testProjectRootConstant,
					HomeDirectory:    "/home/maid",
				},
			)
		},
		TaskRunnerFactory: func(taskrunner.DependenciesResult) taskrunner.Runner { return runner },
	}
	return testHarness{builder: builder, healthChecker: healthChecker, runner: runner}
}

func (harness testHarness) execute(t *testing.T, executionContext context.Context, arguments ...string) (string, error) {
	t.Helper()
	command, buildError := harness.builder.Build()
	require.NoError(t, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(io.Discard)
	command.SetArgs(arguments)
	executionError := command.ExecuteContext(executionContext)
	return outputBuffer.String(), executionError
}

func TestRemoteListsRemoteTasks(testInstance *testing.T) {
	testCases := []struct {
		name      string
		contents  string
		arguments []string
		expected  string
	}{
		{name: "bare namespace", contents: testRemoteMaidfile, arguments: nil, expected: "build (Build remotely)\n"},
		{name: "list subcommand", contents: testRemoteMaidfile, arguments: []string{"list"}, expected: "build (Build remotely)\n"},
		{name: "ls alias", contents: testRemoteMaidfile, arguments: []string{"ls"}, expected: "build (Build remotely)\n"},
		{name: "no remote tasks", contents: testLocalMaidfile, arguments: []string{"list"}, expected: "No tasks available.\n"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			harness := newHarness(subtest, testCase.contents)
			output, executionError := harness.execute(subtest, context.Background(), testCase.arguments...)
			require.NoError(subtest, executionError)
			require.Equal(subtest, testCase.expected, output)
		})
	}
}

func TestRemoteRunsTaskWithRemoteFlag(testInstance *testing.T) {
	harness := newHarness(testInstance, testRemoteMaidfile)
	executionContext := utils.NewCommandContextAccessor().WithExecutionFlags(context.Background(), utils.ExecutionFlags{Force: true, ForceSet: true})

	_, executionError := harness.execute(testInstance, executionContext, "build", "--verbose", "fast")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, []taskrunner.RunRequest{{
		TaskName:  "build",
		Arguments: []string{"build", "--verbose", "fast"},
		Remote:    true,
		Force:     true,
	}}, harness.runner.requests)
}

func TestRemoteConnectPrintsHealthReport(testInstance *testing.T) {
	harness := newHarness(testInstance, testRemoteMaidfile)
	harness.healthChecker.report = dispatch.HealthReport{
		Version:  dispatch.HealthField{Data: "0.4.2", Hue: "green"},
		Platform: dispatch.HealthField{Data: "linux/amd64", Hue: "blue"},
		Engine:   dispatch.HealthField{Data: "docker 27.1", Hue: "cyan"},
		Status: dispatch.HealthStatus{
			Uptime:     dispatch.HealthField{Data: "3h", Hue: "yellow"},
			Healthy:    dispatch.HealthField{Data: "yes", Hue: "green"},
			Containers: dispatch.HealthField{Data: []any{"maid-1", "maid-2"}, Hue: "magenta"},
		},
	}

	for _, subcommand := range []string{"connect", "clean"} {
		output, executionError := harness.execute(testInstance, context.Background(), subcommand)
		require.NoError(testInstance, executionError)
		require.Equal(testInstance, "Server Info\n"+
			" - Version: 0.4.2\n"+
			" - Platform: linux/amd64\n"+
			" - Engine: docker 27.1\n"+
			"Server Status\n"+
			" - Uptime: 3h\n"+
			" - Healthy: yes\n"+
			" - Containers: [maid-1 maid-2]\n", output)
	}
	require.Len(testInstance, harness.healthChecker.endpoints, 2)
}

func TestRemoteConnectFailures(testInstance *testing.T) {
	unreachableError := errors.New("connection refused")
	testCases := []struct {
		name          string
		contents      string
		healthError   error
		expectedError error
	}{
		{name: "server not configured", contents: testLocalMaidfile, expectedError: dispatch.ErrServerNotConfigured},
		{name: "health probe fails", contents: testRemoteMaidfile, healthError: unreachableError, expectedError: unreachableError},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			harness := newHarness(subtest, testCase.contents)
			harness.healthChecker.err = testCase.healthError
			_, executionError := harness.execute(subtest, context.Background(), "connect")
			require.ErrorIs(subtest, executionError, testCase.expectedError)
		})
	}
}

func TestRemoteRequiresDependenciesBuilder(testInstance *testing.T) {
	command, buildError := (&remote.CommandBuilder{}).Build()
	require.NoError(testInstance, buildError)
	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"list"})
	require.Error(testInstance, command.Execute())
}
