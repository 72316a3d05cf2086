package version_test

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/maid/internal/version"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

func TestVersionUsesBuildInfoWhenAvailable(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})

	require.Equal(t, "v1.2.3", detector.Version())
}

func TestVersionPrefersLinkedVersion(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider, LinkedVersion: " v2.0.0 "})

	require.Equal(t, "v2.0.0", detector.Version())
}

func TestVersionReturnsUnknownForDevelopmentBuilds(t *testing.T) {
	testCases := []struct {
		name     string
		provider stubBuildInfoProvider
	}{
		{name: "devel", provider: stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, available: true}},
		{name: "empty", provider: stubBuildInfoProvider{info: &debug.BuildInfo{}, available: true}},
		{name: "unavailable", provider: stubBuildInfoProvider{}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			detector := version.NewDetector(version.Dependencies{BuildInfoProvider: testCase.provider})
			require.Equal(t, "unknown", detector.Version())
		})
	}
}

func TestDescribeAppendsRevisionDetails(t *testing.T) {
	provider := stubBuildInfoProvider{
		info: &debug.BuildInfo{
			Main: debug.Module{Version: "v1.2.3"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		},
		available: true,
	}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})

	require.Equal(t, "v1.2.3 (0123456-dirty 2026-01-02)", detector.Describe())
}

func TestDescribeWithoutRevisionReturnsVersion(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})

	require.Equal(t, "v1.2.3", detector.Describe())
}
