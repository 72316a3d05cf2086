package butler_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/maid/cmd/cli/butler"
	"github.com/tyemirov/maid/internal/buildcache"
	"github.com/tyemirov/maid/internal/execshell"
	"github.com/tyemirov/maid/internal/maidfile"
	"github.com/tyemirov/maid/internal/utils"
	"github.com/tyemirov/maid/internal/watcher"
	"github.com/tyemirov/maid/pkg/taskrunner"
)

const (
	testProjectRootConstant = "/work"
	testHomeDirectory       = "/home/maid"
	testMaidfileContents    = `[project]
name = "demo"
version = "2.1.0"

[env]
GREETING = "hello"
TARGET = "%{dir.project}/bin"

[tasks.build]
info = "Build the binary"
script = "go build -o %{arg.1}"

[tasks._internal]
script = "echo hidden"

[tasks.deploy]
script = "echo deploy"

[tasks.deploy.remote]
push = ["bin"]
exclusive = true
`
	testBareMaidfileContents = `[tasks.lint]
script = "golangci-lint run"
`
)

type noopCommandRunner struct{}

func (noopCommandRunner) Run(context.Context, execshell.ShellCommand) (execshell.ExecutionResult, error) {
	return execshell.ExecutionResult{}, nil
}

func newProjectFileSystem(t *testing.T, contents string) afero.Fs {
	t.Helper()
	fileSystem := afero.NewMemMapFs()
	require.NoError(t, fileSystem.MkdirAll(testProjectRootConstant, 0o755))
	require.NoError(t, afero.WriteFile(fileSystem, filepath.Join(testProjectRootConstant, maidfile.DefaultFileName), []byte(contents), 0o644))
	return fileSystem
}

func newCommandBuilder(t *testing.T, fileSystem afero.Fs, workingDirectory string) *butler.CommandBuilder {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return &butler.CommandBuilder{
		LoggerProvider: func() *zap.Logger { return logger },
		DependenciesBuilder: func(command *cobra.Command) (taskrunner.DependenciesResult, error) {
			return taskrunner.BuildDependencies(
				taskrunner.DependenciesConfig{
					LoggerProvider: func() *zap.Logger { return logger },
					FileSystem:     fileSystem,
					CommandRunner:  noopCommandRunner{},
				},
				taskrunner.DependenciesOptions{
					Command:          command,
					WorkingDirectory: workingDirectory,
					HomeDirectory:    testHomeDirectory,
				},
			)
		},
		FileSystem:       fileSystem,
		WorkingDirectory: func() (string, error) { return workingDirectory, nil },
	}
}

func executeButler(t *testing.T, builder *butler.CommandBuilder, executionContext context.Context, arguments ...string) (string, error) {
	t.Helper()
	command, buildError := builder.Build()
	require.NoError(t, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(io.Discard)
	command.SetArgs(arguments)
	executionError := command.ExecuteContext(executionContext)
	return outputBuffer.String(), executionError
}

func TestButlerCommands(testInstance *testing.T) {
	testCases := []struct {
		name              string
		contents          string
		logLevel          string
		configurationPath string
		arguments         []string
		expectedOutput    string
		expectedParts     []string
		expectedError     error
	}{
		{
			name:           "tasks lists visible local tasks",
			contents:       testMaidfileContents,
			arguments:      []string{"tasks"},
			expectedOutput: "build (Build the binary)\n",
		},
		{
			name:          "tasks shows scripts at debug level",
			contents:      testMaidfileContents,
			logLevel:      "debug",
			arguments:     []string{"ls"},
			expectedParts: []string{"build (Build the binary)", "go build -o %{arg.1}"},
		},
		{
			name:          "tasks marks missing descriptions",
			contents:      testBareMaidfileContents,
			arguments:     []string{"list"},
			expectedParts: []string{"lint (no description)"},
		},
		{
			name:          "info prints project metadata",
			contents:      testMaidfileContents,
			arguments:     []string{"info"},
			expectedParts: []string{"Project demo info", "Version: 2.1.0", "Directory: /work", "Maidfile: /work/maidfile"},
		},
		{
			name:              "info names the configuration file in use",
			contents:          testMaidfileContents,
			configurationPath: "/home/maid/.maid/config.yaml",
			arguments:         []string{"info"},
			expectedOutput:    "Project demo info\n\nVersion: 2.1.0\nDirectory: /work\nMaidfile: /work/maidfile\nConfig: /home/maid/.maid/config.yaml\n",
		},
		{
			name:          "info without project section",
			contents:      testBareMaidfileContents,
			arguments:     []string{"info"},
			expectedParts: []string{"Project info", "Directory: /work"},
		},
		{
			name:           "env prints sorted raw values",
			contents:       testMaidfileContents,
			arguments:      []string{"env"},
			expectedOutput: "ENV for demo\n\nGREETING=hello\nTARGET=%{dir.project}/bin\n",
		},
		{
			name:          "env without values",
			contents:      testBareMaidfileContents,
			arguments:     []string{"env"},
			expectedError: butler.ErrNoEnvironmentValues,
		},
		{
			name:          "json keeps placeholders",
			contents:      testMaidfileContents,
			arguments:     []string{"json"},
			expectedParts: []string{`"script":"go build -o %{arg.1}"`, `"TARGET":"%{dir.project}/bin"`},
		},
		{
			name:          "json hydrates placeholders",
			contents:      testMaidfileContents,
			arguments:     []string{"json", "--hydrate", "build", "out"},
			expectedParts: []string{`"script":"go build -o out"`, `"TARGET":"/work/bin"`},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			builder := newCommandBuilder(subtest, newProjectFileSystem(subtest, testCase.contents), testProjectRootConstant)
			executionContext := context.Background()
			if len(testCase.logLevel) > 0 {
				executionContext = utils.NewCommandContextAccessor().WithLogLevel(executionContext, testCase.logLevel)
			}
			if len(testCase.configurationPath) > 0 {
				executionContext = utils.NewCommandContextAccessor().WithConfigurationFilePath(executionContext, testCase.configurationPath)
			}

			output, executionError := executeButler(subtest, builder, executionContext, testCase.arguments...)
			if testCase.expectedError != nil {
				require.ErrorIs(subtest, executionError, testCase.expectedError)
				return
			}
			require.NoError(subtest, executionError)
			if len(testCase.expectedOutput) > 0 {
				require.Equal(subtest, testCase.expectedOutput, output)
			}
			for _, expectedPart := range testCase.expectedParts {
				require.Contains(subtest, output, expectedPart)
			}
		})
	}
}

func TestButlerReportsMissingMaidfile(testInstance *testing.T) {
	builder := newCommandBuilder(testInstance, afero.NewMemMapFs(), "/empty")
	_, executionError := executeButler(testInstance, builder, context.Background(), "info")
	require.ErrorIs(testInstance, executionError, maidfile.ErrMaidfileNotFound)
}

func TestButlerCleanPurgesCacheDirectories(testInstance *testing.T) {
	fileSystem := newProjectFileSystem(testInstance, testMaidfileContents)
	cacheDirectory := buildcache.CacheDirectory(testProjectRootConstant)
	tempDirectory := buildcache.TempDirectory(testProjectRootConstant)
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(cacheDirectory, "build.toml"), []byte("hash = \"x\"\n"), 0o644))
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(tempDirectory, "archive.tgz"), []byte("data"), 0o644))

	builder := newCommandBuilder(testInstance, fileSystem, testProjectRootConstant)
	output, executionError := executeButler(testInstance, builder, context.Background(), "clean")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "Purged temp archives\nEmptied build cache\n", output)

	cachePresent, _ := afero.DirExists(fileSystem, cacheDirectory)
	require.False(testInstance, cachePresent)
	tempPresent, _ := afero.DirExists(fileSystem, tempDirectory)
	require.False(testInstance, tempPresent)
}

func TestButlerCleanWithoutCacheIsQuiet(testInstance *testing.T) {
	builder := newCommandBuilder(testInstance, newProjectFileSystem(testInstance, testMaidfileContents), testProjectRootConstant)
	output, executionError := executeButler(testInstance, builder, context.Background(), "clean")
	require.NoError(testInstance, executionError)
	require.Empty(testInstance, output)
}

func TestButlerInitWritesLoadableMaidfile(testInstance *testing.T) {
	const projectDirectory = "/projects/fresh"
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(projectDirectory, 0o755))
	builder := newCommandBuilder(testInstance, fileSystem, projectDirectory)

	output, executionError := executeButler(testInstance, builder, context.Background(), "init")
	require.NoError(testInstance, executionError)
	expectedPath := filepath.Join(projectDirectory, maidfile.DefaultFileName)
	require.Equal(testInstance, "Created "+expectedPath+"\n", output)

	document, loadError := maidfile.NewLoader(fileSystem, zap.NewNop()).Load(projectDirectory, maidfile.DefaultFileName)
	require.NoError(testInstance, loadError)
	require.NotNil(testInstance, document.Maidfile.Project)
	require.Equal(testInstance, "fresh", document.Maidfile.Project.Name)
	require.Equal(testInstance, "1.0.0", document.Maidfile.Project.Version)
	require.Equal(testInstance, maidfile.Script{"echo 'hello world'"}, document.Maidfile.Tasks["example"].Script)

	_, repeatedError := executeButler(testInstance, builder, context.Background(), "init", "--name", "other")
	require.ErrorIs(testInstance, repeatedError, butler.ErrMaidfileExists)
}

func TestButlerWatchRejectsFileRoot(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	filePath := filepath.Join(workingDirectory, "notes.txt")
	require.NoError(testInstance, afero.WriteFile(afero.NewOsFs(), filePath, []byte("x"), 0o644))

	builder := newCommandBuilder(testInstance, afero.NewOsFs(), workingDirectory)
	_, executionError := executeButler(testInstance, builder, context.Background(), "watch", "--directory", "notes.txt")
	require.ErrorIs(testInstance, executionError, watcher.ErrWatchRootNotDirectory)
}

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	require.Equal(testInstance, butler.DefaultCommandConfiguration(), butler.CommandConfiguration{WatchDirectory: "  "}.Sanitize())
}
