package taskrunner

import (
	"context"

	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/executor"
)

const summaryLogMessageConstant = "Task summary"

// RunRequest names the task to run and how to run it.
type RunRequest struct {
	TaskName  string
	Arguments []string
	Remote    bool
	Force     bool
	Silent    bool
}

// Runner executes maidfile tasks.
type Runner interface {
	Run(ctx context.Context, request RunRequest) (executor.Outcome, error)
}

// Factory constructs a Runner given resolved dependencies.
type Factory func(DependenciesResult) Runner

type executorRunner struct {
	executor *executor.Executor
}

func (adapter executorRunner) Run(ctx context.Context, request RunRequest) (executor.Outcome, error) {
	return adapter.executor.Execute(ctx, request.TaskName, request.Arguments, executor.ExecutionContext{
		Silent:   request.Silent,
		IsRemote: request.Remote,
		Force:    request.Force,
	})
}

// Resolve returns either the provided factory result or the default executor-backed runner.
func Resolve(factory Factory, dependencies DependenciesResult) Runner {
	var base Runner
	if factory != nil {
		base = factory(dependencies)
	}
	if base == nil {
		base = executorRunner{executor: dependencies.Executor}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return summaryRunner{delegate: base, logger: logger}
}

type summaryRunner struct {
	delegate Runner
	logger   *zap.Logger
}

func (runner summaryRunner) Run(ctx context.Context, request RunRequest) (executor.Outcome, error) {
	outcome, err := runner.delegate.Run(ctx, request)
	if summary := RenderSummaryLine(outcome); len(summary) > 0 {
		runner.logger.Debug(summaryLogMessageConstant, zap.String("summary", summary))
	}
	return outcome, err
}
