package taskrunner

import (
	"fmt"
	"strings"

	"github.com/tyemirov/maid/internal/executor"
)

// RenderSummaryLine returns the key=value summary logged after a task run.
func RenderSummaryLine(outcome executor.Outcome) string {
	taskName := strings.TrimSpace(outcome.TaskName)
	if len(taskName) == 0 {
		return ""
	}

	parts := []string{fmt.Sprintf("Summary: task=%s", taskName)}
	parts = append(parts, fmt.Sprintf("cache_hit=%t", outcome.CacheHit))
	parts = append(parts, fmt.Sprintf("exit_code=%d", outcome.ExitCode))
	parts = append(parts, fmt.Sprintf("dependencies=%d", outcome.DependenciesRun))
	if outcome.Remote != nil {
		parts = append(parts, fmt.Sprintf("remote.messages=%d", outcome.Remote.MessagesLogged))
		parts = append(parts, fmt.Sprintf("remote.archives=%d", outcome.Remote.ArchivesExtracted))
	}
	if len(outcome.SavedTargets) > 0 {
		parts = append(parts, fmt.Sprintf("targets.saved=%d", len(outcome.SavedTargets)))
	}
	if len(outcome.RestoredTargets) > 0 {
		parts = append(parts, fmt.Sprintf("targets.restored=%d", len(outcome.RestoredTargets)))
	}
	parts = append(parts, fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()))

	return strings.Join(parts, " ")
}
