// Package butler hosts the project housekeeping commands: task listings,
// project metadata, cache cleanup, scaffolding, and file watching.
package butler

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/utils"
	"github.com/tyemirov/maid/pkg/taskrunner"
)

const (
	namespaceUseConstant                   = "butler"
	namespaceAliasConstant                 = "b"
	namespaceShortDescriptionConstant      = "Project housekeeping commands"
	tasksUseConstant                       = "tasks"
	tasksShortDescriptionConstant          = "List the tasks defined in the maidfile"
	tasksLongDescriptionConstant           = "butler tasks lists runnable tasks with their descriptions. Scripts are shown when the log level is debug."
	tasksListAliasConstant                 = "ls"
	tasksLongListAliasConstant             = "list"
	debugLogLevelConstant                  = "debug"
	defaultWatchDirectoryConstant          = "src"
	defaultWatchDebounceConstant           = time.Second
	dependenciesBuilderMissingConstant     = "butler: maidfile dependencies builder not configured"
	dependenciesCloseFailedMessageConstant = "Unable to release task dependencies"
)

var errDependenciesBuilderMissing = errors.New(dependenciesBuilderMissingConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// DependenciesBuilder loads the maidfile for a command and wires its collaborators.
type DependenciesBuilder func(command *cobra.Command) (taskrunner.DependenciesResult, error)

// CommandConfiguration carries the configurable defaults of the butler commands.
type CommandConfiguration struct {
	WatchDirectory string
	WatchDebounce  time.Duration
}

// DefaultCommandConfiguration returns the built-in butler defaults.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{WatchDirectory: defaultWatchDirectoryConstant, WatchDebounce: defaultWatchDebounceConstant}
}

// Sanitize fills empty values with defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.WatchDirectory = strings.TrimSpace(sanitized.WatchDirectory)
	if len(sanitized.WatchDirectory) == 0 {
		sanitized.WatchDirectory = defaultWatchDirectoryConstant
	}
	if sanitized.WatchDebounce <= 0 {
		sanitized.WatchDebounce = defaultWatchDebounceConstant
	}
	return sanitized
}

// CommandBuilder assembles the butler namespace.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	DependenciesBuilder   DependenciesBuilder
	ConfigurationProvider func() CommandConfiguration
	ColorProvider         func() bool
	FileSystem            afero.Fs
	WorkingDirectory      func() (string, error)
}

// Build constructs the butler namespace and its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	namespaceCommand := &cobra.Command{
		Use:           namespaceUseConstant,
		Short:         namespaceShortDescriptionConstant,
		Aliases:       []string{namespaceAliasConstant},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	tasksCommand := &cobra.Command{
		Use:     tasksUseConstant,
		Short:   tasksShortDescriptionConstant,
		Long:    tasksLongDescriptionConstant,
		Aliases: []string{tasksListAliasConstant, tasksLongListAliasConstant},
		Args:    cobra.NoArgs,
		RunE:    builder.runTasks,
	}

	namespaceCommand.AddCommand(
		tasksCommand,
		builder.buildInfoCommand(),
		builder.buildEnvCommand(),
		builder.buildJSONCommand(),
		builder.buildCleanCommand(),
		builder.buildInitCommand(),
		builder.buildWatchCommand(),
	)

	return namespaceCommand, nil
}

func (builder *CommandBuilder) runTasks(command *cobra.Command, arguments []string) error {
	dependencies, dependenciesError := builder.loadDependencies(command)
	if dependenciesError != nil {
		return dependenciesError
	}
	defer builder.release(dependencies)

	maidfileDocument := dependencies.Document.Maidfile
	return taskrunner.WriteTaskListing(command.OutOrStdout(), maidfileDocument, maidfileDocument.LocalTaskNames(), taskrunner.ListingOptions{
		ShowScripts: ShowScripts(command),
		Colorize:    builder.colorize(),
	})
}

// ShowScripts reports whether listings should include task scripts, which is
// the case when the command runs at debug log level.
func ShowScripts(command *cobra.Command) bool {
	if command == nil {
		return false
	}
	logLevel, available := utils.NewCommandContextAccessor().LogLevel(command.Context())
	return available && strings.EqualFold(logLevel, debugLogLevelConstant)
}

func (builder *CommandBuilder) loadDependencies(command *cobra.Command) (taskrunner.DependenciesResult, error) {
	if builder.DependenciesBuilder == nil {
		return taskrunner.DependenciesResult{}, errDependenciesBuilderMissing
	}
	return builder.DependenciesBuilder(command)
}

func (builder *CommandBuilder) release(dependencies taskrunner.DependenciesResult) {
	if closeError := dependencies.Close(); closeError != nil {
		builder.resolveLogger().Warn(dependenciesCloseFailedMessageConstant, zap.Error(closeError))
	}
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveFileSystem() afero.Fs {
	if builder.FileSystem == nil {
		return afero.NewOsFs()
	}
	return builder.FileSystem
}

func (builder *CommandBuilder) colorize() bool {
	if builder.ColorProvider == nil {
		return false
	}
	return builder.ColorProvider()
}
