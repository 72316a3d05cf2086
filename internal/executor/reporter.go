package executor

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/buildcache"
	"github.com/tyemirov/maid/internal/maidfile"
)

const (
	arrowSymbolConstant               = "→"
	successSymbolConstant             = "✔"
	failureSymbolConstant             = "✖"
	addedSymbolConstant               = "+"
	sizeSeparatorConstant             = " | "
	cachedSkipMessageConstant         = "skipping task due to cached files"
	restoredTargetTemplateConstant    = "copied target '%s' from cache"
	savedTargetTemplateConstant       = "saved target '%s' to cache"
	finishedTaskMessageConstant       = "finished task successfully"
	exitStatusMessageConstant         = "exited with status code"
	tookTemplateConstant              = "%s took %s"
	dependencySummaryTemplateConstant = "finished %d %s in"
	dependencySingularConstant        = "dependency"
	dependencyPluralConstant          = "dependencies"
	dependencyStepMessageConstant     = "running dependency"
	saveTargetFailedMessageConstant   = "Cannot save target file"
	cacheMissMessageConstant          = "Cache miss"
	targetFieldNameConstant           = "target"
	stepFieldNameConstant             = "step"
	dependencyFieldNameConstant       = "dependency"
)

// Reporter renders task progress for people watching the terminal.
type Reporter struct {
	writer   io.Writer
	colorize bool
	logger   *zap.Logger
}

// NewReporter constructs a Reporter. Colors are emitted only when colorize is set.
func NewReporter(writer io.Writer, colorize bool, logger *zap.Logger) *Reporter {
	if writer == nil {
		writer = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{writer: writer, colorize: colorize, logger: logger}
}

// TaskStarted prints the script about to run. The task path is shown only
// when the task runs outside the project root and the invocation directory.
func (reporter *Reporter) TaskStarted(script maidfile.Script, taskPath string) {
	banner := reporter.paint(color.FgWhite, arrowSymbolConstant) + " " + script.String()
	if len(taskPath) > 0 {
		banner = reporter.paint(color.FgLightCyan, "("+taskPath+")") + " " + banner
	}
	reporter.line(banner)
}

// CacheHit reports artifacts restored from the cache.
func (reporter *Reporter) CacheHit(artifacts []buildcache.ArtifactReport) {
	reporter.line(reporter.paint(color.FgLightMagenta, cachedSkipMessageConstant))
	for _, artifact := range artifacts {
		reporter.line(fmt.Sprintf("%s (%s)", reporter.paint(color.FgMagenta, fmt.Sprintf(restoredTargetTemplateConstant, artifact.Path)), reporter.paint(color.FgWhite, FormatBytes(artifact.Bytes))))
	}
}

// TaskSucceeded reports a successful run and the artifacts saved for it.
func (reporter *Reporter) TaskSucceeded(taskName string, artifacts []buildcache.ArtifactReport, elapsed time.Duration, silent bool) {
	if silent {
		for _, artifact := range artifacts {
			if artifact.Error != nil {
				reporter.logger.Warn(cacheMissMessageConstant, zap.String(targetFieldNameConstant, artifact.Path), zap.Error(artifact.Error))
				continue
			}
			reporter.line(fmt.Sprintf("%s %s%s%s", addedSymbolConstant, reporter.paint(color.FgLightGreen, artifact.Path), sizeSeparatorConstant, reporter.paint(color.FgLightCyan, FormatBytes(artifact.Bytes))))
		}
		return
	}

	reporter.line("\n" + reporter.paint(color.FgGreen, successSymbolConstant) + " " + reporter.paint(color.FgLightGreen, finishedTaskMessageConstant))
	for _, artifact := range artifacts {
		if artifact.Error != nil {
			reporter.logger.Error(saveTargetFailedMessageConstant, zap.String(targetFieldNameConstant, artifact.Path), zap.Error(artifact.Error))
			continue
		}
		reporter.line(fmt.Sprintf("%s (%s)", reporter.paint(color.FgLightMagenta, fmt.Sprintf(savedTargetTemplateConstant, artifact.Path)), reporter.paint(color.FgWhite, FormatBytes(artifact.Bytes))))
	}
	reporter.took(taskName, elapsed)
}

// TaskFailed reports a run whose final line exited non-zero.
func (reporter *Reporter) TaskFailed(taskName string, exitCode int, elapsed time.Duration) {
	reporter.line(fmt.Sprintf("\n%s %s %s", reporter.paint(color.FgRed, failureSymbolConstant), reporter.paint(color.FgLightRed, exitStatusMessageConstant), reporter.paint(color.FgRed, fmt.Sprint(exitCode))))
	reporter.took(taskName, elapsed)
}

// NewDependencyReporter creates the progress handle owned by the outermost invocation.
func (reporter *Reporter) NewDependencyReporter() *DependencyReporter {
	return &DependencyReporter{reporter: reporter}
}

func (reporter *Reporter) took(taskName string, elapsed time.Duration) {
	reporter.line(fmt.Sprintf(tookTemplateConstant, reporter.paint(color.FgWhite, taskName), reporter.paint(color.FgYellow, FormatDuration(elapsed))))
}

func (reporter *Reporter) line(text string) {
	fmt.Fprintln(reporter.writer, text)
}

func (reporter *Reporter) paint(style color.Color, text string) string {
	if !reporter.colorize {
		return text
	}
	return style.Sprint(text)
}

// DependencyReporter tracks dependency progress for one top-level invocation.
type DependencyReporter struct {
	reporter *Reporter
	steps    int
}

// Step records that a dependency is about to run.
func (progress *DependencyReporter) Step(index int, total int, dependencyName string) {
	progress.steps++
	progress.reporter.logger.Debug(dependencyStepMessageConstant, zap.String(stepFieldNameConstant, fmt.Sprintf("[%d/%d]", index, total)), zap.String(dependencyFieldNameConstant, dependencyName))
}

// Steps returns how many dependency runs were recorded, nested ones included.
func (progress *DependencyReporter) Steps() int {
	return progress.steps
}

// Finish prints the dependency summary line.
func (progress *DependencyReporter) Finish(dependencyNames []string, elapsed time.Duration) {
	noun := dependencySingularConstant
	if len(dependencyNames) > 1 {
		noun = dependencyPluralConstant
	}
	reporter := progress.reporter
	reporter.line(fmt.Sprintf("%s %s %s %s\n",
		reporter.paint(color.FgGreen, successSymbolConstant),
		reporter.paint(color.FgLightGreen, fmt.Sprintf(dependencySummaryTemplateConstant, len(dependencyNames), noun)),
		reporter.paint(color.FgYellow, FormatDuration(elapsed)),
		reporter.paint(color.FgWhite, "["+strings.Join(dependencyNames, ", ")+"]"),
	))
}

// FormatBytes renders a byte count for display.
func FormatBytes(byteCount int64) string {
	if byteCount < 0 {
		byteCount = 0
	}
	return humanize.Bytes(uint64(byteCount))
}

// FormatDuration renders elapsed time with two decimals in the largest fitting unit.
func FormatDuration(elapsed time.Duration) string {
	switch {
	case elapsed >= time.Second:
		return formatHundredths(elapsed.Seconds()) + "s"
	case elapsed >= time.Millisecond:
		return formatHundredths(float64(elapsed)/float64(time.Millisecond)) + "ms"
	case elapsed >= time.Microsecond:
		return formatHundredths(float64(elapsed)/float64(time.Microsecond)) + "µs"
	default:
		return fmt.Sprintf("%dns", elapsed.Nanoseconds())
	}
}

// FtoaWithDigits truncates, so the value is rounded first.
func formatHundredths(value float64) string {
	return humanize.FtoaWithDigits(math.Round(value*100)/100, 2)
}
