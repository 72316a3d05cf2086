package taskrunner

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"

	"github.com/tyemirov/maid/internal/maidfile"
)

const (
	missingDescriptionConstant    = "(no description)"
	descriptionTemplateConstant   = "(%s)"
	emptyListingMessageConstant   = "No tasks available."
	listingFieldSeparatorConstant = " "
)

// ListingOptions controls how task listings are rendered.
type ListingOptions struct {
	ShowScripts bool
	Colorize    bool
}

// WriteTaskListing prints one line per task: the name, its description, and
// the script when ShowScripts is set.
func WriteTaskListing(writer io.Writer, document maidfile.Maidfile, taskNames []string, options ListingOptions) error {
	if len(taskNames) == 0 {
		_, writeError := fmt.Fprintln(writer, emptyListingMessageConstant)
		return writeError
	}

	paint := func(style color.Color, text string) string {
		if !options.Colorize {
			return text
		}
		return style.Sprint(text)
	}

	for _, taskName := range taskNames {
		task := document.Tasks[taskName]
		description := paint(color.FgLightRed, missingDescriptionConstant)
		if trimmedInfo := strings.TrimSpace(task.Info); len(trimmedInfo) > 0 {
			description = paint(color.FgWhite, fmt.Sprintf(descriptionTemplateConstant, trimmedInfo))
		}

		fields := []string{paint(color.FgLightYellow, taskName), description}
		if options.ShowScripts {
			fields = append(fields, paint(color.FgLightBlue, task.Script.String()))
		}
		if _, writeError := fmt.Fprintln(writer, strings.Join(fields, listingFieldSeparatorConstant)); writeError != nil {
			return writeError
		}
	}
	return nil
}
