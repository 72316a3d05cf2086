package butler

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/gookit/color"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/tyemirov/maid/internal/maidfile"
	"github.com/tyemirov/maid/internal/utils"
)

const (
	infoUseConstant                         = "info"
	infoShortDescriptionConstant            = "Show project name, version, and root directory"
	envUseConstant                          = "env"
	envShortDescriptionConstant             = "Print the env values declared in the maidfile"
	jsonUseConstant                         = "json [args...]"
	jsonShortDescriptionConstant            = "Print the merged maidfile as JSON"
	jsonLongDescriptionConstant             = "butler json prints the merged maidfile as JSON. With --hydrate, %{...} placeholders are rendered using the remaining arguments as arg.N values."
	hydrateFlagNameConstant                 = "hydrate"
	hydrateFlagUsageConstant                = "Render placeholders before printing"
	namedProjectHeadingTemplateConstant     = "Project %s info"
	anonymousProjectHeadingConstant         = "Project info"
	namedEnvironmentHeadingTemplateConstant = "ENV for %s"
	anonymousEnvironmentHeadingConstant     = "ENV for this project"
	fieldLineTemplateConstant               = "%s: %s\n"
	versionLabelConstant                    = "Version"
	directoryLabelConstant                  = "Directory"
	maidfileLabelConstant                   = "Maidfile"
	configurationLabelConstant              = "Config"
	environmentAssignmentConstant           = "="
	noEnvironmentValuesMessageConstant      = "no ENV values defined for this project"
)

// ErrNoEnvironmentValues indicates the maidfile declares no env section.
var ErrNoEnvironmentValues = errors.New(noEnvironmentValuesMessageConstant)

func (builder *CommandBuilder) buildInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   infoUseConstant,
		Short: infoShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			dependencies, dependenciesError := builder.loadDependencies(command)
			if dependenciesError != nil {
				return dependenciesError
			}
			defer builder.release(dependencies)

			output := command.OutOrStdout()
			project := dependencies.Document.Maidfile.Project
			heading := anonymousProjectHeadingConstant
			if project != nil && len(project.Name) > 0 {
				heading = fmt.Sprintf(namedProjectHeadingTemplateConstant, project.Name)
			}
			fmt.Fprintln(output, builder.paint(color.FgCyan, heading))
			fmt.Fprintln(output)
			if project != nil && len(project.Version) > 0 {
				builder.writeField(output, versionLabelConstant, project.Version)
			}
			builder.writeField(output, directoryLabelConstant, dependencies.Document.ProjectRoot)

			accessor := utils.NewCommandContextAccessor()
			if projectContext, available := accessor.ProjectContext(command.Context()); available && len(projectContext.MaidfilePath) > 0 {
				builder.writeField(output, maidfileLabelConstant, projectContext.MaidfilePath)
			}
			if configurationFilePath, available := accessor.ConfigurationFilePath(command.Context()); available && len(configurationFilePath) > 0 {
				builder.writeField(output, configurationLabelConstant, configurationFilePath)
			}
			return nil
		},
	}
}

func (builder *CommandBuilder) buildEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   envUseConstant,
		Short: envShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			dependencies, dependenciesError := builder.loadDependencies(command)
			if dependenciesError != nil {
				return dependenciesError
			}
			defer builder.release(dependencies)

			document := dependencies.Document.Maidfile
			if len(document.Env) == 0 {
				return ErrNoEnvironmentValues
			}

			output := command.OutOrStdout()
			heading := anonymousEnvironmentHeadingConstant
			if document.Project != nil && len(document.Project.Name) > 0 {
				heading = fmt.Sprintf(namedEnvironmentHeadingTemplateConstant, document.Project.Name)
			}
			fmt.Fprintln(output, builder.paint(color.FgCyan, heading))
			fmt.Fprintln(output)

			keys := make([]string, 0, len(document.Env))
			for key := range document.Env {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintln(output, builder.paint(color.FgLightCyan, key)+builder.paint(color.FgWhite, environmentAssignmentConstant)+cast.ToString(document.Env[key]))
			}
			return nil
		},
	}
}

func (builder *CommandBuilder) buildJSONCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   jsonUseConstant,
		Short: jsonShortDescriptionConstant,
		Long:  jsonLongDescriptionConstant,
		Args:  cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			hydrate, flagError := command.Flags().GetBool(hydrateFlagNameConstant)
			if flagError != nil {
				return flagError
			}

			dependencies, dependenciesError := builder.loadDependencies(command)
			if dependenciesError != nil {
				return dependenciesError
			}
			defer builder.release(dependencies)

			encoded, encodeError := dependencies.Document.Maidfile.ToJSON()
			if encodeError != nil {
				return encodeError
			}
			if hydrate {
				table := maidfile.NewTable(maidfile.TableRequest{
					Maidfile:         dependencies.Document.Maidfile,
					Arguments:        arguments,
					ProjectRoot:      dependencies.Document.ProjectRoot,
					CurrentDirectory: dependencies.CurrentDirectory,
					HomeDirectory:    dependencies.HomeDirectory,
				})
				encoded = table.Render(encoded)
			}
			_, writeError := fmt.Fprintln(command.OutOrStdout(), encoded)
			return writeError
		},
	}
	command.Flags().Bool(hydrateFlagNameConstant, false, hydrateFlagUsageConstant)
	return command
}

func (builder *CommandBuilder) writeField(output io.Writer, label string, value string) {
	fmt.Fprintf(output, fieldLineTemplateConstant, builder.paint(color.FgWhite, label), builder.paint(color.FgLightYellow, value))
}

func (builder *CommandBuilder) paint(style color.Color, text string) string {
	if !builder.colorize() {
		return text
	}
	return style.Sprint(text)
}
