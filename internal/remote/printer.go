package remote

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
)

const (
	brightPrefixConstant     = "bright "
	lightColorPrefixConstant = "light"
	labelSeparatorConstant   = " "
)

type levelStyle struct {
	label string
	color color.Color
}

var levelStyles = map[Level]levelStyle{
	LevelFatal:   {label: "FATAL", color: color.FgLightRed},
	LevelDocker:  {label: "DOCKER", color: color.FgLightYellow},
	LevelInfo:    {label: "INFO", color: color.FgCyan},
	LevelBuild:   {label: "BUILD", color: color.FgLightGreen},
	LevelSuccess: {label: "SUCCESS", color: color.FgGreen},
	LevelDebug:   {label: "DEBUG", color: color.FgMagenta},
	LevelNotice:  {label: "NOTICE", color: color.FgLightBlue},
	LevelWarning: {label: "WARN", color: color.FgYellow},
	LevelError:   {label: "ERROR", color: color.FgRed},
}

// EventPrinter renders worker events and status lines to a writer.
type EventPrinter struct {
	writer   io.Writer
	colorize bool
}

// NewEventPrinter builds a printer. Colors are emitted only when colorize is set.
func NewEventPrinter(writer io.Writer, colorize bool) *EventPrinter {
	if writer == nil {
		writer = io.Discard
	}
	return &EventPrinter{writer: writer, colorize: colorize}
}

// Print writes message at level. LevelNone writes the raw text without a label
// or trailing newline.
func (printer *EventPrinter) Print(level Level, message string) {
	style, styled := levelStyles[level]
	if !styled {
		fmt.Fprint(printer.writer, message)
		return
	}
	fmt.Fprintln(printer.writer, printer.paint(style.color, style.label)+labelSeparatorConstant+message)
}

// PrintEvent writes a message event.
func (printer *EventPrinter) PrintEvent(event Event) {
	printer.Print(event.Level, event.Message)
}

// Printf formats and writes a message at level.
func (printer *EventPrinter) Printf(level Level, format string, arguments ...any) {
	printer.Print(level, fmt.Sprintf(format, arguments...))
}

// Line writes text followed by a newline.
func (printer *EventPrinter) Line(text string) {
	fmt.Fprintln(printer.writer, text)
}

// Hue renders text in a named color such as "green" or "bright blue".
// Unknown names leave the text unchanged.
func (printer *EventPrinter) Hue(name string, text string) string {
	foreground, known := lookupHue(name)
	if !known {
		return text
	}
	return printer.paint(foreground, text)
}

// Bold renders text in bold.
func (printer *EventPrinter) Bold(text string) string {
	return printer.paint(color.OpBold, text)
}

func (printer *EventPrinter) paint(style color.Color, text string) string {
	if !printer.colorize {
		return text
	}
	return style.Sprint(text)
}

func lookupHue(name string) (color.Color, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if len(normalized) == 0 {
		return 0, false
	}
	if strings.HasPrefix(normalized, brightPrefixConstant) {
		normalized = lightColorPrefixConstant + strings.TrimPrefix(normalized, brightPrefixConstant)
	}
	for _, palette := range []map[string]color.Color{color.FgColors, color.ExFgColors} {
		for candidateName, candidateColor := range palette {
			if strings.EqualFold(candidateName, normalized) {
				return candidateColor, true
			}
		}
	}
	return 0, false
}
