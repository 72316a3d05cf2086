// Package remote hosts the commands that talk to the remote worker: running
// tasks remotely, listing remote tasks, and checking worker health.
package remote

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/cmd/cli/butler"
	dispatch "github.com/tyemirov/maid/internal/remote"
	flagutils "github.com/tyemirov/maid/internal/utils/flags"
	"github.com/tyemirov/maid/pkg/taskrunner"
)

const (
	namespaceUseConstant                   = "remote [task] [args...]"
	namespaceAliasConstant                 = "r"
	namespaceShortDescriptionConstant      = "Run tasks on the remote worker"
	namespaceLongDescriptionConstant       = "remote runs the named task on the worker declared in the maidfile's project.server section. Without a task it lists the tasks that declare a remote configuration."
	connectUseConstant                     = "connect"
	connectShortDescriptionConstant        = "Show the remote worker's version and health"
	cleanUseConstant                       = "clean"
	cleanShortDescriptionConstant          = "Check the remote worker (remote cleanup is performed by the worker itself)"
	listUseConstant                        = "list"
	listAliasConstant                      = "ls"
	listShortDescriptionConstant           = "List tasks that can run remotely"
	serverInfoHeadingConstant              = "Server Info"
	serverStatusHeadingConstant            = "Server Status"
	fieldLineTemplateConstant              = " - %s: %s"
	versionLabelConstant                   = "Version"
	platformLabelConstant                  = "Platform"
	engineLabelConstant                    = "Engine"
	uptimeLabelConstant                    = "Uptime"
	healthyLabelConstant                   = "Healthy"
	containersLabelConstant                = "Containers"
	headingHueConstant                     = "green"
	labelHueConstant                       = "white"
	dependenciesBuilderMissingConstant     = "remote: maidfile dependencies builder not configured"
	dependenciesCloseFailedMessageConstant = "Unable to release task dependencies"
)

var errDependenciesBuilderMissing = errors.New(dependenciesBuilderMissingConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the remote namespace.
type CommandBuilder struct {
	LoggerProvider      LoggerProvider
	DependenciesBuilder butler.DependenciesBuilder
	TaskRunnerFactory   taskrunner.Factory
	ColorProvider       func() bool
}

// Build constructs the remote namespace and its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	namespaceCommand := &cobra.Command{
		Use:           namespaceUseConstant,
		Short:         namespaceShortDescriptionConstant,
		Long:          namespaceLongDescriptionConstant,
		Aliases:       []string{namespaceAliasConstant},
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          builder.runRemote,
	}
	namespaceCommand.Flags().SetInterspersed(false)

	connectCommand := &cobra.Command{
		Use:   connectUseConstant,
		Short: connectShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runConnect,
	}
	cleanCommand := &cobra.Command{
		Use:   cleanUseConstant,
		Short: cleanShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runConnect,
	}
	listCommand := &cobra.Command{
		Use:     listUseConstant,
		Short:   listShortDescriptionConstant,
		Aliases: []string{listAliasConstant},
		Args:    cobra.NoArgs,
		RunE:    builder.runList,
	}

	namespaceCommand.AddCommand(connectCommand, cleanCommand, listCommand)
	return namespaceCommand, nil
}

func (builder *CommandBuilder) runRemote(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return builder.runList(command, arguments)
	}

	dependencies, dependenciesError := builder.loadDependencies(command)
	if dependenciesError != nil {
		return dependenciesError
	}
	defer builder.release(dependencies)

	executionFlags, _ := flagutils.ResolveExecutionFlags(command)
	runner := taskrunner.Resolve(builder.TaskRunnerFactory, dependencies)
	_, runError := runner.Run(command.Context(), taskrunner.RunRequest{
		TaskName:  arguments[0],
		Arguments: arguments,
		Remote:    true,
		Force:     executionFlags.Force,
		Silent:    executionFlags.Silent,
	})
	return runError
}

func (builder *CommandBuilder) runList(command *cobra.Command, arguments []string) error {
	dependencies, dependenciesError := builder.loadDependencies(command)
	if dependenciesError != nil {
		return dependenciesError
	}
	defer builder.release(dependencies)

	maidfileDocument := dependencies.Document.Maidfile
	return taskrunner.WriteTaskListing(command.OutOrStdout(), maidfileDocument, maidfileDocument.RemoteTaskNames(), taskrunner.ListingOptions{
		ShowScripts: butler.ShowScripts(command),
		Colorize:    builder.colorize(),
	})
}

func (builder *CommandBuilder) runConnect(command *cobra.Command, arguments []string) error {
	dependencies, dependenciesError := builder.loadDependencies(command)
	if dependenciesError != nil {
		return dependenciesError
	}
	defer builder.release(dependencies)

	server, configured := dependencies.Document.Maidfile.ServerConfiguration()
	if !configured {
		return dispatch.ErrServerNotConfigured
	}
	report, healthError := dependencies.Dispatcher.Health(command.Context(), server)
	if healthError != nil {
		return healthError
	}

	printer := dispatch.NewEventPrinter(command.OutOrStdout(), builder.colorize())
	heading := func(text string) string {
		return printer.Bold(printer.Hue(headingHueConstant, text))
	}
	field := func(label string, value dispatch.HealthField) string {
		return fmt.Sprintf(fieldLineTemplateConstant, printer.Hue(labelHueConstant, label), printer.Hue(value.Hue, value.Text()))
	}

	printer.Line(heading(serverInfoHeadingConstant))
	printer.Line(field(versionLabelConstant, report.Version))
	printer.Line(field(platformLabelConstant, report.Platform))
	printer.Line(field(engineLabelConstant, report.Engine))
	printer.Line(heading(serverStatusHeadingConstant))
	printer.Line(field(uptimeLabelConstant, report.Status.Uptime))
	printer.Line(field(healthyLabelConstant, report.Status.Healthy))
	printer.Line(field(containersLabelConstant, report.Status.Containers))
	return nil
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

func (builder *CommandBuilder) colorize() bool {
	if builder.ColorProvider == nil {
		return false
	}
	return builder.ColorProvider()
}
