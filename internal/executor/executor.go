// Package executor resolves maidfile tasks, runs their dependencies in order,
// consults the build cache, and dispatches scripts locally or to the remote worker.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/buildcache"
	"github.com/tyemirov/maid/internal/execshell"
	"github.com/tyemirov/maid/internal/maidfile"
	"github.com/tyemirov/maid/internal/remote"
	"github.com/tyemirov/maid/internal/shellwords"
)

const (
	resolvedTaskMessageConstant     = "Resolved task"
	dependencyFailedMessageConstant = "Dependency finished with errors"
	cacheDecisionMessageConstant    = "Build cache consulted"
	renderedLineMessageConstant     = "Rendered script line"
	taskNameFieldConstant           = "task"
	workingDirectoryFieldConstant   = "working_directory"
	decisionFieldConstant           = "decision"
	hashFieldConstant               = "hash"
	originalLineFieldConstant       = "original"
	renderedLineFieldConstant       = "rendered"
	dependencyNameFieldConstant     = "dependency"
	serverMissingTemplateConstant   = "task %s: %w"
)

// ExecutionContext carries the per-invocation switches threaded through recursive runs.
type ExecutionContext struct {
	Silent            bool
	IsDependency      bool
	IsRemote          bool
	Force             bool
	VerboseDependency bool
}

// Outcome describes how a task invocation ended.
type Outcome struct {
	TaskName         string
	CacheHit         bool
	ExitCode         int
	Duration         time.Duration
	DependenciesRun  int
	Remote           *remote.SessionResult
	RestoredTargets  []buildcache.ArtifactReport
	SavedTargets     []buildcache.ArtifactReport
	WorkingDirectory string
}

// CacheStore decides cache hits and moves artifacts.
type CacheStore interface {
	Check(request buildcache.CheckRequest) (buildcache.Decision, error)
	Restore(taskName string, targets []string) (buildcache.RestoreResult, error)
	Save(taskName string, targets []string) []buildcache.ArtifactReport
}

// TreeHasher computes the content hash of a tracked path.
type TreeHasher interface {
	ComputeHash(trackedPath string) string
}

// ScriptRunner executes tokenized script lines.
type ScriptRunner interface {
	RunScript(executionContext context.Context, request execshell.ScriptRequest) (execshell.ScriptResult, error)
}

// RemoteDispatcher runs a task on the remote worker.
type RemoteDispatcher interface {
	Dispatch(executionContext context.Context, request remote.SessionRequest) (remote.SessionResult, error)
}

// Dependencies wires the collaborators of an Executor.
type Dependencies struct {
	Document         maidfile.Document
	CacheStore       CacheStore
	Hasher           TreeHasher
	ScriptRunner     ScriptRunner
	Dispatcher       RemoteDispatcher
	Reporter         *Reporter
	Logger           *zap.Logger
	CurrentDirectory string
	HomeDirectory    string
}

// Executor runs maidfile tasks.
type Executor struct {
	document         maidfile.Document
	cacheStore       CacheStore
	hasher           TreeHasher
	scriptRunner     ScriptRunner
	dispatcher       RemoteDispatcher
	reporter         *Reporter
	logger           *zap.Logger
	currentDirectory string
	homeDirectory    string
}

// NewExecutor validates the dependencies and constructs an Executor.
func NewExecutor(dependencies Dependencies) (*Executor, error) {
	if dependencies.ScriptRunner == nil {
		return nil, ErrScriptRunnerNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = NewReporter(nil, false, logger)
	}
	currentDirectory := dependencies.CurrentDirectory
	if len(currentDirectory) == 0 {
		currentDirectory = dependencies.Document.ProjectRoot
	}
	return &Executor{
		document:         dependencies.Document,
		cacheStore:       dependencies.CacheStore,
		hasher:           dependencies.Hasher,
		scriptRunner:     dependencies.ScriptRunner,
		dispatcher:       dependencies.Dispatcher,
		reporter:         reporter,
		logger:           logger,
		currentDirectory: currentDirectory,
		homeDirectory:    dependencies.HomeDirectory,
	}, nil
}

// Execute runs the named task with the given arguments. A cache hit ends the
// invocation successfully without running the script. A script whose final
// line fails yields TaskFailedError.
func (executor *Executor) Execute(executionContext context.Context, taskName string, arguments []string, options ExecutionContext) (Outcome, error) {
	var progress *DependencyReporter
	if !options.IsDependency {
		progress = executor.reporter.NewDependencyReporter()
	}
	return executor.execute(executionContext, taskName, arguments, options, progress, nil)
}

func (executor *Executor) execute(executionContext context.Context, taskName string, arguments []string, options ExecutionContext, progress *DependencyReporter, chain []string) (Outcome, error) {
	task, exists := executor.document.Maidfile.Tasks[taskName]
	if !exists {
		return Outcome{}, TaskNotFoundError{TaskName: taskName}
	}
	if options.IsRemote && task.Remote == nil {
		return Outcome{}, RemoteConfigurationMissingError{TaskName: taskName}
	}
	if task.Remote != nil && task.Remote.Exclusive && !options.IsRemote {
		return Outcome{}, RemoteOnlyTaskError{TaskName: taskName}
	}
	if slices.Contains(chain, taskName) {
		return Outcome{}, DependencyCycleError{Chain: append(slices.Clone(chain), taskName)}
	}
	chain = append(chain, taskName)

	outcome := Outcome{TaskName: taskName}
	if !options.IsRemote && len(task.Depends) > 0 {
		dependenciesRun, dependencyError := executor.runDependencies(executionContext, task.Depends, arguments, options, progress, chain)
		if dependencyError != nil {
			return Outcome{}, dependencyError
		}
		outcome.DependenciesRun = dependenciesRun
	}

	workingDirectory := executor.resolveWorkingDirectory(task.Path)
	outcome.WorkingDirectory = workingDirectory
	executor.logger.Debug(resolvedTaskMessageConstant, zap.String(taskNameFieldConstant, taskName), zap.String(workingDirectoryFieldConstant, workingDirectory))

	cacheEnabled := task.Cache.Enabled() && !options.IsRemote && executor.cacheStore != nil && executor.hasher != nil
	var resolvedTargets []string
	if cacheEnabled {
		resolvedTargets = resolvePaths(workingDirectory, task.Cache.Target)
		hit, restored, cacheError := executor.consultCache(taskName, task.Cache, workingDirectory, resolvedTargets, options)
		if cacheError != nil {
			return Outcome{}, cacheError
		}
		if hit {
			outcome.CacheHit = true
			outcome.RestoredTargets = labelArtifacts(restored, task.Cache.Target)
			return outcome, nil
		}
	}

	table := maidfile.NewTable(maidfile.TableRequest{
		Maidfile:         executor.document.Maidfile,
		Arguments:        arguments,
		ProjectRoot:      executor.document.ProjectRoot,
		CurrentDirectory: executor.currentDirectory,
		HomeDirectory:    executor.homeDirectory,
	})
	renderedLines := table.RenderLines(task.Script)
	for index, renderedLine := range renderedLines {
		executor.logger.Debug(renderedLineMessageConstant, zap.String(originalLineFieldConstant, task.Script[index]), zap.String(renderedLineFieldConstant, renderedLine))
	}

	if options.IsRemote {
		return executor.dispatchRemote(executionContext, taskName, task, arguments, renderedLines, outcome)
	}

	if !options.Silent {
		executor.reporter.TaskStarted(task.Script, executor.bannerPath(task.Path, workingDirectory))
	}

	commands, parseError := tokenizeLines(taskName, renderedLines)
	if parseError != nil {
		return Outcome{}, parseError
	}

	streamMode := execshell.StreamInherited
	if options.IsDependency && !options.VerboseDependency {
		streamMode = execshell.StreamSuppressed
	}

	scriptResult, runError := executor.scriptRunner.RunScript(executionContext, execshell.ScriptRequest{
		Commands:         commands,
		WorkingDirectory: workingDirectory,
		Environment:      table.Environment(),
		StreamMode:       streamMode,
	})
	if runError != nil {
		return Outcome{}, runError
	}
	outcome.ExitCode = scriptResult.ExitCode
	outcome.Duration = scriptResult.Duration

	if !scriptResult.Succeeded() {
		if !options.Silent {
			executor.reporter.TaskFailed(taskName, scriptResult.ExitCode, scriptResult.Duration)
		}
		return outcome, TaskFailedError{TaskName: taskName, ExitCode: scriptResult.ExitCode}
	}

	if cacheEnabled {
		outcome.SavedTargets = labelArtifacts(executor.cacheStore.Save(taskName, resolvedTargets), task.Cache.Target)
	}
	executor.reporter.TaskSucceeded(taskName, outcome.SavedTargets, scriptResult.Duration, options.Silent)
	return outcome, nil
}

func (executor *Executor) runDependencies(executionContext context.Context, dependencyReferences []string, arguments []string, options ExecutionContext, progress *DependencyReporter, chain []string) (int, error) {
	startTime := time.Now()
	dependencyNames := make([]string, 0, len(dependencyReferences))
	for index, reference := range dependencyReferences {
		dependency := maidfile.ParseDependency(reference)
		dependencyNames = append(dependencyNames, dependency.Name)
		if progress != nil {
			progress.Step(index+1, len(dependencyReferences), dependency.Name)
		}

		dependencyOptions := ExecutionContext{
			Silent:            true,
			IsDependency:      true,
			IsRemote:          options.IsRemote,
			Force:             options.Force,
			VerboseDependency: dependency.Verbose,
		}
		_, dependencyError := executor.execute(executionContext, dependency.Name, arguments, dependencyOptions, progress, chain)
		if dependencyError != nil {
			var failedError TaskFailedError
			if !errors.As(dependencyError, &failedError) {
				return index, dependencyError
			}
			executor.logger.Warn(dependencyFailedMessageConstant, zap.String(dependencyNameFieldConstant, dependency.Name), zap.Error(dependencyError))
		}
	}

	if !options.IsDependency && progress != nil {
		progress.Finish(dependencyNames, time.Since(startTime))
	}
	return len(dependencyNames), nil
}

func (executor *Executor) consultCache(taskName string, cache *maidfile.Cache, workingDirectory string, resolvedTargets []string, options ExecutionContext) (bool, []buildcache.ArtifactReport, error) {
	trackedPath := resolvePath(workingDirectory, cache.Path)
	hash := executor.hasher.ComputeHash(trackedPath)

	decision, checkError := executor.cacheStore.Check(buildcache.CheckRequest{
		TaskName:     taskName,
		Hash:         hash,
		Targets:      cache.Target,
		Force:        options.Force,
		IsDependency: options.IsDependency,
	})
	if checkError != nil {
		return false, nil, checkError
	}
	executor.logger.Debug(cacheDecisionMessageConstant, zap.String(taskNameFieldConstant, taskName), zap.Stringer(decisionFieldConstant, decision), zap.String(hashFieldConstant, hash))
	if decision != buildcache.DecisionHit {
		return false, nil, nil
	}

	restoreResult, restoreError := executor.cacheStore.Restore(taskName, resolvedTargets)
	if restoreError != nil {
		return false, nil, restoreError
	}
	if !restoreResult.Restored {
		return false, nil, nil
	}
	executor.reporter.CacheHit(labelArtifacts(restoreResult.Artifacts, cache.Target))
	return true, restoreResult.Artifacts, nil
}

func (executor *Executor) dispatchRemote(executionContext context.Context, taskName string, task maidfile.Task, arguments []string, renderedLines []string, outcome Outcome) (Outcome, error) {
	if executor.dispatcher == nil {
		return Outcome{}, ErrRemoteDispatcherNotConfigured
	}
	server, configured := executor.document.Maidfile.ServerConfiguration()
	if !configured {
		return Outcome{}, fmt.Errorf(serverMissingTemplateConstant, taskName, remote.ErrServerNotConfigured)
	}

	startTime := time.Now()
	sessionResult, dispatchError := executor.dispatcher.Dispatch(executionContext, remote.SessionRequest{
		TaskName:      taskName,
		Arguments:     arguments,
		Script:        renderedLines,
		Remote:        *task.Remote,
		Maidfile:      executor.document.Maidfile,
		Server:        server,
		BaseDirectory: executor.currentDirectory,
	})
	outcome.Duration = time.Since(startTime)
	outcome.Remote = &sessionResult
	if dispatchError != nil {
		return outcome, dispatchError
	}
	return outcome, nil
}

func (executor *Executor) resolveWorkingDirectory(taskPath string) string {
	trimmedPath := strings.TrimSpace(taskPath)
	switch {
	case len(trimmedPath) == 0:
		return executor.document.ProjectRoot
	case trimmedPath == maidfile.CurrentDirectoryPlaceholder:
		return executor.currentDirectory
	default:
		return resolvePath(executor.document.ProjectRoot, trimmedPath)
	}
}

func (executor *Executor) bannerPath(taskPath string, workingDirectory string) string {
	if workingDirectory == executor.document.ProjectRoot || workingDirectory == executor.currentDirectory {
		return ""
	}
	return strings.TrimSpace(taskPath)
}

func tokenizeLines(taskName string, renderedLines []string) ([]shellwords.Command, error) {
	commands := make([]shellwords.Command, 0, len(renderedLines))
	for index, renderedLine := range renderedLines {
		command, parseError := shellwords.Parse(renderedLine)
		if parseError != nil {
			return nil, ScriptParseError{TaskName: taskName, LineNumber: index + 1, Line: renderedLine, Cause: parseError}
		}
		commands = append(commands, command)
	}
	return commands, nil
}

func resolvePath(baseDirectory string, candidatePath string) string {
	if filepath.IsAbs(candidatePath) {
		return filepath.Clean(candidatePath)
	}
	return filepath.Join(baseDirectory, candidatePath)
}

func resolvePaths(baseDirectory string, candidatePaths []string) []string {
	resolved := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		resolved = append(resolved, resolvePath(baseDirectory, candidatePath))
	}
	return resolved
}

// labelArtifacts reports artifacts under the target names written in the maidfile.
func labelArtifacts(artifacts []buildcache.ArtifactReport, declaredTargets []string) []buildcache.ArtifactReport {
	labeled := make([]buildcache.ArtifactReport, 0, len(artifacts))
	for index, artifact := range artifacts {
		if index < len(declaredTargets) {
			artifact.Path = declaredTargets[index]
		}
		labeled = append(labeled, artifact)
	}
	return labeled
}
