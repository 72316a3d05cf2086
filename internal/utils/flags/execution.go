// Package flags provides helpers for binding standardized execution flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	Force        bool
	Silent       bool
	MaidfilePath string
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name      string
	Usage     string
	Shorthand string
	Enabled   bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	Force  ExecutionFlagDefinition
	Silent ExecutionFlagDefinition
	Path   ExecutionFlagDefinition
}

// DefaultExecutionFlagDefinitions enables every standardized execution flag.
func DefaultExecutionFlagDefinitions() ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		Force:  ExecutionFlagDefinition{Name: ForceFlagName, Usage: ForceFlagUsage, Shorthand: ForceFlagShorthand, Enabled: true},
		Silent: ExecutionFlagDefinition{Name: SilentFlagName, Usage: SilentFlagUsage, Shorthand: SilentFlagShorthand, Enabled: true},
		Path:   ExecutionFlagDefinition{Name: PathFlagName, Usage: PathFlagUsage, Shorthand: PathFlagShorthand, Enabled: true},
	}
}

// BindExecutionFlags attaches standardized execution flags to the provided command using persistent scope.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	persistentFlagSet := command.PersistentFlags()

	bindToggleFlag(persistentFlagSet, definitions.Force, defaults.Force)
	bindToggleFlag(persistentFlagSet, definitions.Silent, defaults.Silent)
	bindStringFlag(persistentFlagSet, definitions.Path, defaults.MaidfilePath)
}

func bindToggleFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue bool) {
	if !definitionUsable(flagSet, definition) {
		return
	}
	flagSet.BoolP(definition.Name, definition.Shorthand, defaultValue, definition.Usage)
}

func bindStringFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue string) {
	if !definitionUsable(flagSet, definition) {
		return
	}
	flagSet.StringP(definition.Name, definition.Shorthand, defaultValue, definition.Usage)
}

func definitionUsable(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition) bool {
	if flagSet == nil {
		return false
	}
	if !definition.Enabled {
		return false
	}
	if len(definition.Name) == 0 {
		return false
	}
	return flagSet.Lookup(definition.Name) == nil
}
