package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithProjectContextStoresNormalizedValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()
	enriched := accessor.WithProjectContext(base, ProjectContext{MaidfilePath: "  /work/maidfile ", RootPath: " /work "})

	projectContext, exists := accessor.ProjectContext(enriched)
	require.True(t, exists)
	require.Equal(t, "/work/maidfile", projectContext.MaidfilePath)
	require.Equal(t, "/work", projectContext.RootPath)
}

func TestWithProjectContextSkipsEmptyValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()
	enriched := accessor.WithProjectContext(base, ProjectContext{MaidfilePath: "  "})

	_, exists := accessor.ProjectContext(enriched)
	require.False(t, exists)
}

func TestWithLogLevelIgnoresBlankValue(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()

	_, exists := accessor.LogLevel(accessor.WithLogLevel(base, " "))
	require.False(t, exists)

	logLevel, exists := accessor.LogLevel(accessor.WithLogLevel(base, " debug "))
	require.True(t, exists)
	require.Equal(t, "debug", logLevel)
}

func TestWithConfigurationFilePathRoundTrip(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithConfigurationFilePath(context.Background(), "/etc/maid/config.yaml")

	configurationFilePath, exists := accessor.ConfigurationFilePath(enriched)
	require.True(t, exists)
	require.Equal(t, "/etc/maid/config.yaml", configurationFilePath)
}

func TestWithExecutionFlagsStoresValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()
	flags := ExecutionFlags{Force: true, ForceSet: true, MaidfilePath: "build/maidfile.toml", PathSet: true}

	enriched := accessor.WithExecutionFlags(base, flags)

	retrieved, exists := accessor.ExecutionFlags(enriched)
	require.True(t, exists)
	require.Equal(t, flags, retrieved)
}

func TestWithExecutionFlagsHandlesMissingContext(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, exists := accessor.ExecutionFlags(context.Background())
	require.False(t, exists)
}
