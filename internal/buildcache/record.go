package buildcache

import (
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	maidDirectoryNameConstant         = ".maid"
	cacheDirectoryNameConstant        = "cache"
	tempDirectoryNameConstant         = "temp"
	targetDirectoryNameConstant       = "target"
	recordFileExtensionConstant       = ".toml"
	cacheDirectoryPermissionsConstant = 0o755
	recordFilePermissionsConstant     = 0o644
)

// Record is the persisted cache state for a single task.
type Record struct {
	Target []string `toml:"target"`
	Hash   string   `toml:"hash"`
}

func encodeRecord(record Record) ([]byte, error) {
	if record.Target == nil {
		record.Target = []string{}
	}
	return toml.Marshal(record)
}

func decodeRecord(contents []byte) (Record, error) {
	var record Record
	if decodeError := toml.Unmarshal(contents, &record); decodeError != nil {
		return Record{}, decodeError
	}
	return record, nil
}

// MaidDirectory returns the per-project state directory.
func MaidDirectory(projectRoot string) string {
	return filepath.Join(projectRoot, maidDirectoryNameConstant)
}

// CacheDirectory returns the directory holding every task's cache entry.
func CacheDirectory(projectRoot string) string {
	return filepath.Join(MaidDirectory(projectRoot), cacheDirectoryNameConstant)
}

// TempDirectory returns the directory used for transient remote archives.
func TempDirectory(projectRoot string) string {
	return filepath.Join(MaidDirectory(projectRoot), tempDirectoryNameConstant)
}

func taskCacheDirectory(projectRoot string, taskName string) string {
	return filepath.Join(CacheDirectory(projectRoot), taskName)
}

func taskRecordPath(projectRoot string, taskName string) string {
	return filepath.Join(taskCacheDirectory(projectRoot, taskName), taskName+recordFileExtensionConstant)
}

func taskArtifactPath(projectRoot string, taskName string, targetPath string) string {
	return filepath.Join(taskCacheDirectory(projectRoot, taskName), targetDirectoryNameConstant, filepath.Base(targetPath))
}
