package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/cmd/cli/butler"
	remotecmd "github.com/tyemirov/maid/cmd/cli/remote"
	"github.com/tyemirov/maid/internal/execshell"
	"github.com/tyemirov/maid/internal/executor"
	"github.com/tyemirov/maid/internal/maidfile"
	"github.com/tyemirov/maid/internal/utils"
	flagutils "github.com/tyemirov/maid/internal/utils/flags"
	"github.com/tyemirov/maid/internal/version"
	"github.com/tyemirov/maid/pkg/taskrunner"
)

const (
	applicationNameConstant                            = "maid"
	applicationUseConstant                             = applicationNameConstant + " [task] [args...]"
	applicationShortDescriptionConstant                = "Run the tasks declared in a maidfile"
	applicationLongDescriptionConstant                 = "maid runs maidfile tasks with their dependencies, skips work whose cached inputs are unchanged, and can hand tasks to a remote worker. Without a task it lists the runnable tasks. Flags after the task name are passed to the task."
	configFileFlagNameConstant                         = "config"
	configFileFlagUsageConstant                        = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                           = "log-level"
	logLevelFlagUsageConstant                          = "Override the configured log level (debug, info, warn, error)."
	logFormatFlagNameConstant                          = "log-format"
	logFormatFlagUsageConstant                         = "Override the configured log format (structured or console)."
	configurationInitializationFlagNameConstant        = "init"
	configurationInitializationFlagUsageConstant       = "Write the embedded default configuration to local (./config.yaml) or user ($HOME/.maid/config.yaml) scope. Use --init=user for the user scope and --force to overwrite."
	configurationInitializationDefaultScopeConstant    = "local"
	commonConfigurationKeyConstant                     = "common"
	commonLogLevelConfigKeyConstant                    = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                   = commonConfigurationKeyConstant + ".log_format"
	commonColorConfigKeyConstant                       = commonConfigurationKeyConstant + ".color"
	tasksMaidfileConfigKeyConstant                     = "tasks.maidfile"
	tasksForceConfigKeyConstant                        = "tasks.force"
	tasksSilentConfigKeyConstant                       = "tasks.silent"
	remoteHealthTimeoutConfigKeyConstant               = "remote.health_timeout"
	watchDirectoryConfigKeyConstant                    = "watch.directory"
	watchDebounceConfigKeyConstant                     = "watch.debounce"
	environmentPrefixConstant                          = "MAID"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	configurationFileNameConstant                      = configurationNameConstant + "." + configurationTypeConstant
	configurationInitializedMessageConstant            = "configuration initialized"
	configurationLogLevelFieldConstant                 = "log_level"
	configurationLogFormatFieldConstant                = "log_format"
	configurationFileFieldConstant                     = "config_file"
	xdgConfigHomeEnvironmentVariableConstant           = "XDG_CONFIG_HOME"
	noColorEnvironmentVariableConstant                 = "NO_COLOR"
	configurationLoadErrorTemplateConstant             = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                    = "unable to flush logger: %w"
	configurationInitializedConsoleTemplateConstant    = "%s | log level=%s | log format=%s | config file=%s"
	rootCommandDebugMessageConstant                    = "maid CLI invoked"
	maidfileLoadedMessageConstant                      = "Loaded maidfile"
	logFieldCommandNameConstant                        = "command_name"
	logFieldArgumentsConstant                          = "arguments"
	logFieldMaidfileConstant                           = "maidfile"
	logFieldProjectRootConstant                        = "project_root"
	loggerNotInitializedMessageConstant                = "logger not initialized"
	defaultConfigurationSearchPathConstant             = "."
	userConfigurationDirectoryNameConstant             = ".maid"
	configurationSearchPathEnvironmentVariableConstant = "MAID_CONFIG_SEARCH_PATH"
	versionFlagNameConstant                            = "version"
	versionFlagUsageConstant                           = "Print the application version and exit"
	versionOutputTemplateConstant                      = "maid version: %s\n"
	versionCommandUseNameConstant                      = "version"
	versionCommandShortDescriptionConstant             = "Print the maid version"
	versionCommandLongDescriptionConstant              = "version prints the maid release identifier together with the VCS revision it was built from."
	failureExitCodeConstant                            = 1
)

// LinkedVersion is populated at link time with -ldflags "-X github.com/tyemirov/maid/cmd/cli.LinkedVersion=<version>".
var LinkedVersion string

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application wires the Cobra command hierarchy together with configuration and logging.
type Application struct {
	rootCommand                      *cobra.Command
	configurationLoader              *utils.ConfigurationLoader
	loggerFactory                    loggerOutputsFactory
	logger                           *zap.Logger
	consoleLogger                    *zap.Logger
	configuration                    ApplicationConfiguration
	configurationMetadata            utils.LoadedConfiguration
	configurationFilePath            string
	logLevelFlagValue                string
	logFormatFlagValue               string
	commandContextAccessor           utils.CommandContextAccessor
	configurationInitializationScope string
	versionFlag                      bool
	versionResolver                  func() string
	exitFunction                     func(int)
	fileSystem                       afero.Fs
	commandRunner                    execshell.CommandRunner
	taskRunnerFactory                taskrunner.Factory
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		fileSystem:             afero.NewOsFs(),
	}
	application.versionResolver = application.resolveVersion
	application.exitFunction = os.Exit

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		application.resolveConfigurationSearchPaths(),
	)

	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	cobraCommand := &cobra.Command{
		Use:           applicationUseConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initializeConfiguration(command); initializationError != nil {
				return initializationError
			}

			versionRequested := application.versionFlag
			if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
				versionRequested = flagValue
			}
			if versionRequested {
				application.printVersion(command)
				application.exitFunction(0)
			}

			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}
	cobraCommand.Flags().SetInterspersed(false)

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(
		&application.configurationInitializationScope,
		configurationInitializationFlagNameConstant,
		configurationInitializationDefaultScopeConstant,
		configurationInitializationFlagUsageConstant,
	)
	if initializationFlag := cobraCommand.PersistentFlags().Lookup(configurationInitializationFlagNameConstant); initializationFlag != nil {
		initializationFlag.NoOptDefVal = configurationInitializationDefaultScopeConstant
	}

	flagutils.BindExecutionFlags(
		cobraCommand,
		flagutils.ExecutionDefaults{MaidfilePath: maidfile.DefaultFileName},
		flagutils.DefaultExecutionFlagDefinitions(),
	)

	cobraCommand.PersistentFlags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	versionCommand := &cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Long:          versionCommandLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	}
	cobraCommand.AddCommand(versionCommand)

	butlerBuilder := butler.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		DependenciesBuilder:   application.buildDependencies,
		ConfigurationProvider: application.butlerConfiguration,
		ColorProvider:         application.colorEnabled,
		FileSystem:            application.fileSystem,
	}
	butlerCommand, butlerBuildError := butlerBuilder.Build()
	if butlerBuildError == nil {
		cobraCommand.AddCommand(butlerCommand)
	}

	remoteBuilder := remotecmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		DependenciesBuilder: application.buildDependencies,
		TaskRunnerFactory: func(dependencies taskrunner.DependenciesResult) taskrunner.Runner {
			if application.taskRunnerFactory == nil {
				return nil
			}
			return application.taskRunnerFactory(dependencies)
		},
		ColorProvider: application.colorEnabled,
	}
	remoteCommand, remoteBuildError := remoteBuilder.Build()
	if remoteBuildError == nil {
		cobraCommand.AddCommand(remoteCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
// SIGINT and SIGTERM cancel the command context so running tasks and remote
// sessions are torn down.
func (application *Application) Execute() error {
	application.rootCommand.SetArgs(os.Args[1:])

	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// ExitCode maps an execution error to a process exit status. A failed task
// exits with the status of its last script line.
func ExitCode(executionError error) int {
	if executionError == nil {
		return 0
	}
	var failedError executor.TaskFailedError
	if errors.As(executionError, &failedError) && failedError.ExitCode > 0 {
		return failedError.ExitCode
	}
	return failureExitCodeConstant
}

func (application *Application) resolveConfigurationSearchPaths() []string {
	overrideValue := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentVariableConstant))
	if len(overrideValue) == 0 {
		defaultSearchPaths := []string{defaultConfigurationSearchPathConstant}
		return append(defaultSearchPaths, application.resolveUserConfigurationDirectoryPaths()...)
	}

	overridePaths := strings.FieldsFunc(overrideValue, func(candidate rune) bool {
		return candidate == os.PathListSeparator
	})

	cleanedPaths := make([]string, 0, len(overridePaths))
	for _, pathCandidate := range overridePaths {
		trimmedCandidate := strings.TrimSpace(pathCandidate)
		if len(trimmedCandidate) == 0 {
			continue
		}
		cleanedPaths = append(cleanedPaths, trimmedCandidate)
	}

	if len(cleanedPaths) == 0 {
		return []string{defaultConfigurationSearchPathConstant}
	}

	return cleanedPaths
}

func (application *Application) resolveUserConfigurationDirectoryPaths() []string {
	userConfigurationDirectoryPaths := make([]string, 0, 3)

	appendConfigurationDirectory := func(baseDirectoryPath string) {
		trimmedBaseDirectoryPath := strings.TrimSpace(baseDirectoryPath)
		if len(trimmedBaseDirectoryPath) == 0 {
			return
		}

		candidateDirectoryPath := filepath.Join(trimmedBaseDirectoryPath, userConfigurationDirectoryNameConstant)
		for _, existingDirectoryPath := range userConfigurationDirectoryPaths {
			if existingDirectoryPath == candidateDirectoryPath {
				return
			}
		}

		userConfigurationDirectoryPaths = append(userConfigurationDirectoryPaths, candidateDirectoryPath)
	}

	appendConfigurationDirectory(os.Getenv(xdgConfigHomeEnvironmentVariableConstant))

	if userConfigurationBaseDirectoryPath, userConfigurationDirectoryError := os.UserConfigDir(); userConfigurationDirectoryError == nil {
		appendConfigurationDirectory(userConfigurationBaseDirectoryPath)
	}

	if userHomeDirectoryPath, userHomeDirectoryError := os.UserHomeDir(); userHomeDirectoryError == nil {
		appendConfigurationDirectory(userHomeDirectoryPath)
	}

	return userConfigurationDirectoryPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:      string(utils.LogLevelWarn),
		commonLogFormatConfigKeyConstant:     string(utils.LogFormatConsole),
		commonColorConfigKeyConstant:         true,
		tasksMaidfileConfigKeyConstant:       maidfile.DefaultFileName,
		tasksForceConfigKeyConstant:          false,
		tasksSilentConfigKeyConstant:         false,
		remoteHealthTimeoutConfigKeyConstant: "30s",
		watchDirectoryConfigKeyConstant:      "src",
		watchDebounceConfigKeyConstant:       "1s",
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}

	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithExecutionFlags(updatedContext, application.collectExecutionFlags(command))
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)

		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// InitializeForCommand prepares application state for the provided command name without executing command logic.
func (application *Application) InitializeForCommand(commandUse string) error {
	command := &cobra.Command{Use: commandUse}
	command.SetContext(context.Background())
	return application.initializeConfiguration(command)
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

// Configuration returns the resolved application configuration.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) colorEnabled() bool {
	if _, disabled := os.LookupEnv(noColorEnvironmentVariableConstant); disabled {
		return false
	}
	return application.configuration.Common.Color
}

func (application *Application) logConfigurationInitialization() {
	if !strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogLevel), string(utils.LogLevelDebug)) {
		return
	}

	if application.humanReadableLoggingEnabled() {
		bannerMessage := fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
		)
		application.consoleLogger.Debug(bannerMessage)
		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
}

// collectExecutionFlags reads the execution flags and fills the ones the user
// did not set from the tasks section of the configuration.
func (application *Application) collectExecutionFlags(command *cobra.Command) utils.ExecutionFlags {
	executionFlags := flagutils.CollectExecutionFlags(command)
	if !executionFlags.ForceSet {
		executionFlags.Force = application.configuration.Tasks.Force
	}
	if !executionFlags.SilentSet {
		executionFlags.Silent = application.configuration.Tasks.Silent
	}
	if !executionFlags.PathSet {
		if configuredPath := strings.TrimSpace(application.configuration.Tasks.Maidfile); len(configuredPath) > 0 {
			executionFlags.MaidfilePath = configuredPath
		}
	}
	return executionFlags
}

func (application *Application) dependenciesConfig() taskrunner.DependenciesConfig {
	return taskrunner.DependenciesConfig{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ColorProvider:                application.colorEnabled,
		FileSystem:                   application.fileSystem,
		CommandRunner:                application.commandRunner,
		HealthCheckTimeout:           application.configuration.Remote.HealthTimeout,
	}
}

func (application *Application) buildDependencies(command *cobra.Command) (taskrunner.DependenciesResult, error) {
	executionFlags, _ := flagutils.ResolveExecutionFlags(command)
	dependencies, dependenciesError := taskrunner.BuildDependencies(application.dependenciesConfig(), taskrunner.DependenciesOptions{
		Command:      command,
		MaidfilePath: executionFlags.MaidfilePath,
	})
	if dependenciesError != nil {
		return taskrunner.DependenciesResult{}, dependenciesError
	}

	application.logger.Debug(
		maidfileLoadedMessageConstant,
		zap.String(logFieldMaidfileConstant, dependencies.Document.Path),
		zap.String(logFieldProjectRootConstant, dependencies.Document.ProjectRoot),
	)
	return dependencies, nil
}

func (application *Application) resolveVersion() string {
	return version.NewDetector(version.Dependencies{LinkedVersion: LinkedVersion}).Describe()
}

func (application *Application) printVersion(command *cobra.Command) {
	fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, application.versionResolver())
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	initializationHandled, initializationError := application.handleConfigurationInitialization(command)
	if initializationError != nil {
		return initializationError
	}
	if initializationHandled {
		return nil
	}

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	dependencies, dependenciesError := application.buildDependencies(command)
	if dependenciesError != nil {
		return dependenciesError
	}
	defer func() {
		if closeError := dependencies.Close(); closeError != nil {
			application.logger.Warn(closeError.Error())
		}
	}()

	if len(arguments) == 0 {
		maidfileDocument := dependencies.Document.Maidfile
		return taskrunner.WriteTaskListing(command.OutOrStdout(), maidfileDocument, maidfileDocument.LocalTaskNames(), taskrunner.ListingOptions{
			ShowScripts: butler.ShowScripts(command),
			Colorize:    application.colorEnabled(),
		})
	}

	executionFlags, _ := flagutils.ResolveExecutionFlags(command)
	runner := taskrunner.Resolve(application.taskRunnerFactory, dependencies)
	_, runError := runner.Run(command.Context(), taskrunner.RunRequest{
		TaskName:  arguments[0],
		Arguments: arguments,
		Force:     executionFlags.Force,
		Silent:    executionFlags.Silent,
	})
	return runError
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	if application.consoleLogger == application.logger {
		return nil
	}
	return application.syncLoggerInstance(application.consoleLogger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.EBADF):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}
		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
