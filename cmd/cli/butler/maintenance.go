package butler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/buildcache"
	"github.com/tyemirov/maid/internal/maidfile"
)

const (
	cleanUseConstant                      = "clean"
	cleanShortDescriptionConstant         = "Purge temporary archives and the build cache"
	initUseConstant                       = "init"
	initShortDescriptionConstant          = "Create a starter maidfile in the current directory"
	initNameFlagNameConstant              = "name"
	initNameFlagUsageConstant             = "Project name (defaults to the directory name)"
	initVersionFlagNameConstant           = "project-version"
	initVersionFlagUsageConstant          = "Project version"
	initDefaultVersionConstant            = "1.0.0"
	exampleTaskNameConstant               = "example"
	exampleTaskInfoConstant               = "this is a comment"
	exampleTaskScriptConstant             = "echo 'hello world'"
	purgedTempMessageConstant             = "Purged temp archives"
	emptiedCacheMessageConstant           = "Emptied build cache"
	missingCacheMessageConstant           = "Build cache does not exist, nothing to remove"
	createdMaidfileTemplateConstant       = "Created %s"
	maidfilePermissionsConstant           = 0o644
	maidfileExistsTemplateConstant        = "%w at %s"
	workingDirectoryErrorTemplateConstant = "butler: unable to determine working directory: %w"
	maidfileEncodeErrorTemplateConstant   = "butler: unable to encode maidfile: %w"
	directoryFieldNameConstant            = "directory"
)

// ErrMaidfileExists is returned by init when the target file is already present.
var ErrMaidfileExists = errors.New("maidfile already exists")

type scaffoldProject struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type scaffoldTask struct {
	Info   string `toml:"info"`
	Script string `toml:"script"`
}

type scaffoldMaidfile struct {
	Project scaffoldProject         `toml:"project"`
	Tasks   map[string]scaffoldTask `toml:"tasks"`
}

func (builder *CommandBuilder) buildCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   cleanUseConstant,
		Short: cleanShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			dependencies, dependenciesError := builder.loadDependencies(command)
			if dependenciesError != nil {
				return dependenciesError
			}
			defer builder.release(dependencies)

			fileSystem := dependencies.FileSystem
			if fileSystem == nil {
				fileSystem = builder.resolveFileSystem()
			}
			projectRoot := dependencies.Document.ProjectRoot
			tempPresent, _ := afero.DirExists(fileSystem, buildcache.TempDirectory(projectRoot))
			cachePresent, _ := afero.DirExists(fileSystem, buildcache.CacheDirectory(projectRoot))

			if cleanError := dependencies.CacheStore.Clean(); cleanError != nil {
				return cleanError
			}

			output := command.OutOrStdout()
			if tempPresent {
				fmt.Fprintln(output, builder.paint(color.FgGreen, purgedTempMessageConstant))
			}
			if cachePresent {
				fmt.Fprintln(output, builder.paint(color.FgGreen, emptiedCacheMessageConstant))
				return nil
			}
			builder.resolveLogger().Warn(missingCacheMessageConstant, zap.String(directoryFieldNameConstant, buildcache.CacheDirectory(projectRoot)))
			return nil
		},
	}
}

func (builder *CommandBuilder) buildInitCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   initUseConstant,
		Short: initShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runInit,
	}
	command.Flags().String(initNameFlagNameConstant, "", initNameFlagUsageConstant)
	command.Flags().String(initVersionFlagNameConstant, initDefaultVersionConstant, initVersionFlagUsageConstant)
	return command
}

func (builder *CommandBuilder) runInit(command *cobra.Command, arguments []string) error {
	workingDirectory, directoryError := builder.resolveWorkingDirectory()
	if directoryError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, directoryError)
	}

	projectName, nameError := command.Flags().GetString(initNameFlagNameConstant)
	if nameError != nil {
		return nameError
	}
	projectName = strings.TrimSpace(projectName)
	if len(projectName) == 0 {
		projectName = filepath.Base(workingDirectory)
	}
	projectVersion, versionError := command.Flags().GetString(initVersionFlagNameConstant)
	if versionError != nil {
		return versionError
	}

	fileSystem := builder.resolveFileSystem()
	maidfilePath := filepath.Join(workingDirectory, maidfile.DefaultFileName)
	exists, existsError := afero.Exists(fileSystem, maidfilePath)
	if existsError != nil {
		return existsError
	}
	if exists {
		return fmt.Errorf(maidfileExistsTemplateConstant, ErrMaidfileExists, maidfilePath)
	}

	encoded, encodeError := toml.Marshal(scaffoldMaidfile{
		Project: scaffoldProject{Name: projectName, Version: strings.TrimSpace(projectVersion)},
		Tasks: map[string]scaffoldTask{
			exampleTaskNameConstant: {Info: exampleTaskInfoConstant, Script: exampleTaskScriptConstant},
		},
	})
	if encodeError != nil {
		return fmt.Errorf(maidfileEncodeErrorTemplateConstant, encodeError)
	}
	if writeError := afero.WriteFile(fileSystem, maidfilePath, encoded, maidfilePermissionsConstant); writeError != nil {
		return writeError
	}

	fmt.Fprintln(command.OutOrStdout(), builder.paint(color.FgGreen, fmt.Sprintf(createdMaidfileTemplateConstant, maidfilePath)))
	return nil
}

func (builder *CommandBuilder) resolveWorkingDirectory() (string, error) {
	if builder.WorkingDirectory != nil {
		return builder.WorkingDirectory()
	}
	return os.Getwd()
}
