// Package version resolves the maid build version from linker flags and
// embedded module build information.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant  = "unknown"
	buildInfoDevelVersionValue      = "(devel)"
	buildInfoDevelShortVersionValue = "devel"
	revisionSettingKeyConstant      = "vcs.revision"
	revisionTimeSettingKeyConstant  = "vcs.time"
	modifiedSettingKeyConstant      = "vcs.modified"
	shortRevisionLengthConstant     = 7
	dateLengthConstant              = 10
	dirtySuffixConstant             = "-dirty"
	describeTemplateConstant        = "%s (%s)"
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
	linkedVersion     string
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
	LinkedVersion     string
}

// NewDetector constructs a Detector with the supplied dependencies or sensible defaults.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{
		buildInfoProvider: provider,
		linkedVersion:     strings.TrimSpace(dependencies.LinkedVersion),
	}
}

// Version returns the detected application version string. A version set at
// link time wins over module build information.
func (detector *Detector) Version() string {
	if detector == nil {
		return unknownVersionFallbackConstant
	}
	if len(detector.linkedVersion) > 0 {
		return detector.linkedVersion
	}
	if buildVersion := detector.versionFromBuildInfo(); len(buildVersion) > 0 {
		return buildVersion
	}
	return unknownVersionFallbackConstant
}

// Describe returns the version followed by the VCS revision and commit date
// when the binary carries them.
func (detector *Detector) Describe() string {
	versionString := detector.Version()
	if detector == nil {
		return versionString
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return versionString
	}

	settings := make(map[string]string, len(buildInfo.Settings))
	for _, setting := range buildInfo.Settings {
		settings[setting.Key] = strings.TrimSpace(setting.Value)
	}

	revision := settings[revisionSettingKeyConstant]
	if len(revision) == 0 {
		return versionString
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	if settings[modifiedSettingKeyConstant] == "true" {
		revision += dirtySuffixConstant
	}

	details := revision
	if revisionTime := settings[revisionTimeSettingKeyConstant]; len(revisionTime) >= dateLengthConstant {
		details += " " + revisionTime[:dateLengthConstant]
	}
	return fmt.Sprintf(describeTemplateConstant, versionString, details)
}

func (detector *Detector) versionFromBuildInfo() string {
	if detector.buildInfoProvider == nil {
		return ""
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return ""
	}

	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) == 0 {
		return ""
	}

	if strings.EqualFold(trimmedVersion, buildInfoDevelVersionValue) || strings.EqualFold(trimmedVersion, buildInfoDevelShortVersionValue) {
		return ""
	}

	return trimmedVersion
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
