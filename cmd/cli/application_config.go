package cli

import (
	_ "embed"
	"strings"
	"time"

	"github.com/tyemirov/maid/cmd/cli/butler"
)

const embeddedConfigurationTypeConstant = "yaml"

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the built-in configuration document and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	duplicated := make([]byte, len(embeddedDefaultConfiguration))
	copy(duplicated, embeddedDefaultConfiguration)
	return duplicated, embeddedConfigurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tasks  ApplicationTaskConfiguration   `mapstructure:"tasks"`
	Remote ApplicationRemoteConfiguration `mapstructure:"remote"`
	Watch  ApplicationWatchConfiguration  `mapstructure:"watch"`
}

// ApplicationCommonConfiguration stores logging and presentation defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Color     bool   `mapstructure:"color"`
}

// ApplicationTaskConfiguration stores defaults for the execution flags.
type ApplicationTaskConfiguration struct {
	Maidfile string `mapstructure:"maidfile"`
	Force    bool   `mapstructure:"force"`
	Silent   bool   `mapstructure:"silent"`
}

// ApplicationRemoteConfiguration stores remote worker client settings.
type ApplicationRemoteConfiguration struct {
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// ApplicationWatchConfiguration stores the butler watch defaults.
type ApplicationWatchConfiguration struct {
	Directory string        `mapstructure:"directory"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

func (application *Application) butlerConfiguration() butler.CommandConfiguration {
	return butler.CommandConfiguration{
		WatchDirectory: strings.TrimSpace(application.configuration.Watch.Directory),
		WatchDebounce:  application.configuration.Watch.Debounce,
	}.Sanitize()
}
