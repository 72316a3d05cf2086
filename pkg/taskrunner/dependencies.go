package taskrunner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/buildcache"
	"github.com/tyemirov/maid/internal/execshell"
	"github.com/tyemirov/maid/internal/executor"
	"github.com/tyemirov/maid/internal/maidfile"
	"github.com/tyemirov/maid/internal/remote"
	"github.com/tyemirov/maid/internal/utils"
)

var errWorkingDirectoryMissing = errors.New("taskrunner.dependencies: working directory is empty")

// DependenciesConfig captures providers required to build task execution dependencies.
type DependenciesConfig struct {
	LoggerProvider               func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	ColorProvider                func() bool
	FileSystem                   afero.Fs
	CommandRunner                execshell.CommandRunner
	HealthChecker                remote.HealthChecker
	Dialer                       *websocket.Dialer
	HealthCheckTimeout           time.Duration
}

// DependenciesOptions allows per-command overrides when resolving dependencies.
type DependenciesOptions struct {
	Command          *cobra.Command
	Output           io.Writer
	Errors           io.Writer
	MaidfilePath     string
	WorkingDirectory string
	HomeDirectory    string
}

// DependenciesResult exposes the loaded maidfile together with its wired collaborators.
type DependenciesResult struct {
	Document         maidfile.Document
	Executor         *executor.Executor
	CacheStore       *buildcache.Store
	Dispatcher       *remote.Dispatcher
	Printer          *remote.EventPrinter
	Logger           *zap.Logger
	FileSystem       afero.Fs
	Output           io.Writer
	Errors           io.Writer
	CurrentDirectory string
	HomeDirectory    string
	closers          []io.Closer
}

// Close releases network clients created while building the dependencies.
func (result DependenciesResult) Close() error {
	var closeErrors []error
	for _, closer := range result.closers {
		if closeError := closer.Close(); closeError != nil {
			closeErrors = append(closeErrors, closeError)
		}
	}
	return errors.Join(closeErrors...)
}

// BuildDependencies locates and loads the maidfile, then wires the cache,
// shell executor, and remote dispatcher into an executor.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (DependenciesResult, error) {
	logger := resolveLogger(config.LoggerProvider)
	humanReadable := resolveToggle(config.HumanReadableLoggingProvider)
	colorize := resolveToggle(config.ColorProvider)
	fileSystem := config.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}

	currentDirectory, directoryError := resolveWorkingDirectory(options.WorkingDirectory)
	if directoryError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.working_directory: %w", directoryError)
	}
	homeDirectory := strings.TrimSpace(options.HomeDirectory)
	if len(homeDirectory) == 0 {
		if resolvedHome, homeError := os.UserHomeDir(); homeError == nil {
			homeDirectory = resolvedHome
		}
	}

	searchDirectory, fileName := SplitMaidfilePath(currentDirectory, options.MaidfilePath)
	document, loadError := maidfile.NewLoader(fileSystem, logger).Load(searchDirectory, fileName)
	if loadError != nil {
		return DependenciesResult{}, loadError
	}
	if options.Command != nil {
		projectContext := utils.ProjectContext{MaidfilePath: document.Path, RootPath: document.ProjectRoot}
		options.Command.SetContext(utils.NewCommandContextAccessor().WithProjectContext(options.Command.Context(), projectContext))
	}

	commandRunner := config.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	shellExecutor, shellError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
	if shellError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.shell_executor: %w", shellError)
	}

	outputWriter := utils.NewFlushingWriter(resolveWriter(options.Output, options.Command, true))
	errorWriter := utils.NewFlushingWriter(resolveWriter(options.Errors, options.Command, false))

	var closers []io.Closer
	healthChecker := config.HealthChecker
	if healthChecker == nil {
		healthClient := remote.NewHealthClient(logger, config.HealthCheckTimeout)
		closers = append(closers, healthClient)
		healthChecker = healthClient
	}

	printer := remote.NewEventPrinter(outputWriter, colorize)
	dispatcher := remote.NewDispatcher(remote.DispatcherDependencies{
		HealthChecker: healthChecker,
		Archives:      remote.NewArchiveManager(fileSystem, buildcache.TempDirectory(document.ProjectRoot), logger),
		Printer:       printer,
		Dialer:        config.Dialer,
		FileSystem:    fileSystem,
		Logger:        logger,
	})

	cacheStore := buildcache.NewStore(fileSystem, document.ProjectRoot, logger)
	taskExecutor, executorError := executor.NewExecutor(executor.Dependencies{
		Document:         document,
		CacheStore:       cacheStore,
		Hasher:           buildcache.NewHasher(fileSystem, logger),
		ScriptRunner:     shellExecutor,
		Dispatcher:       dispatcher,
		Reporter:         executor.NewReporter(outputWriter, colorize, logger),
		Logger:           logger,
		CurrentDirectory: currentDirectory,
		HomeDirectory:    homeDirectory,
	})
	if executorError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.executor: %w", executorError)
	}

	return DependenciesResult{
		Document:         document,
		Executor:         taskExecutor,
		CacheStore:       cacheStore,
		Dispatcher:       dispatcher,
		Printer:          printer,
		Logger:           logger,
		FileSystem:       fileSystem,
		Output:           outputWriter,
		Errors:           errorWriter,
		CurrentDirectory: currentDirectory,
		HomeDirectory:    homeDirectory,
		closers:          closers,
	}, nil
}

// SplitMaidfilePath turns the --path value into the directory the search
// starts from and the descriptor base name.
func SplitMaidfilePath(currentDirectory string, maidfilePath string) (string, string) {
	trimmedPath := strings.TrimSpace(maidfilePath)
	if len(trimmedPath) == 0 {
		return currentDirectory, maidfile.DefaultFileName
	}
	directoryPart, namePart := filepath.Split(trimmedPath)
	if len(namePart) == 0 {
		namePart = maidfile.DefaultFileName
	}
	if len(directoryPart) == 0 {
		return currentDirectory, namePart
	}
	if filepath.IsAbs(directoryPart) {
		return filepath.Clean(directoryPart), namePart
	}
	return filepath.Join(currentDirectory, directoryPart), namePart
}

func resolveWorkingDirectory(provided string) (string, error) {
	trimmed := strings.TrimSpace(provided)
	if len(trimmed) > 0 {
		return trimmed, nil
	}
	currentDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return "", workingDirectoryError
	}
	if len(currentDirectory) == 0 {
		return "", errWorkingDirectoryMissing
	}
	return currentDirectory, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveToggle(provider func() bool) bool {
	if provider == nil {
		return false
	}
	return provider()
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command != nil {
		if useStdout {
			if writer := command.OutOrStdout(); writer != nil && writer != io.Discard {
				return writer
			}
		} else {
			if writer := command.ErrOrStderr(); writer != nil && writer != io.Discard {
				return writer
			}
		}
	}
	if useStdout {
		return os.Stdout
	}
	return os.Stderr
}
