package butler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/watcher"
)

const (
	watchUseConstant                = "watch"
	watchShortDescriptionConstant   = "Print file changes under a directory until interrupted"
	watchDirectoryFlagNameConstant  = "directory"
	watchDirectoryShorthandConstant = "d"
	watchDirectoryFlagUsageConstant = "Directory to watch, relative to the working directory"
	watchStartedMessageConstant     = "Watching for changes"
	watchStoppedMessageConstant     = "Stopped watching"
	watchRootFieldNameConstant      = "root"
)

func (builder *CommandBuilder) buildWatchCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   watchUseConstant,
		Short: watchShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runWatch,
	}
	command.Flags().StringP(watchDirectoryFlagNameConstant, watchDirectoryShorthandConstant, "", watchDirectoryFlagUsageConstant)
	return command
}

func (builder *CommandBuilder) runWatch(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	watchDirectory := configuration.WatchDirectory
	if flagValue, flagError := command.Flags().GetString(watchDirectoryFlagNameConstant); flagError == nil && len(strings.TrimSpace(flagValue)) > 0 {
		watchDirectory = strings.TrimSpace(flagValue)
	}
	if !filepath.IsAbs(watchDirectory) {
		workingDirectory, directoryError := builder.resolveWorkingDirectory()
		if directoryError != nil {
			return fmt.Errorf(workingDirectoryErrorTemplateConstant, directoryError)
		}
		watchDirectory = filepath.Join(workingDirectory, watchDirectory)
	}

	logger := builder.resolveLogger()
	subscription, openError := watcher.Open(watchDirectory, watcher.Options{Debounce: configuration.WatchDebounce, Logger: logger})
	if openError != nil {
		return openError
	}
	defer subscription.Close()

	logger.Info(watchStartedMessageConstant, zap.String(watchRootFieldNameConstant, watchDirectory))
	output := command.OutOrStdout()
	runError := subscription.Run(command.Context(), func(events []watcher.Event) {
		for _, event := range events {
			fmt.Fprintln(output, builder.paint(color.FgLightBlue, event.Operation)+" "+event.Path)
		}
	})
	logger.Debug(watchStoppedMessageConstant, zap.String(watchRootFieldNameConstant, watchDirectory))
	return runError
}
