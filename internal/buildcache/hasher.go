package buildcache

import (
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	// ZeroHash is reported for tracked paths that do not exist or cannot be walked.
	ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

	hashPathFieldNameConstant           = "path"
	hashValueFieldNameConstant          = "hash"
	hashMissingPathMessageConstant      = "Tracked path does not exist"
	hashWalkFailureMessageConstant      = "Failed to create tree hash"
	hashComputedMessageConstant         = "Created tree hash"
	hashEmptyTrackedPathMessageConstant = "tracked path is empty"
)

var errEmptyTrackedPath = errors.New(hashEmptyTrackedPathMessageConstant)

// Hasher computes Merkle hashes over a tracked file tree.
type Hasher struct {
	fileSystem afero.Fs
	logger     *zap.Logger
}

// NewHasher constructs a Hasher reading through the provided filesystem.
func NewHasher(fileSystem afero.Fs, logger *zap.Logger) *Hasher {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hasher{fileSystem: fileSystem, logger: logger}
}

// ComputeHash returns the hex encoded root of the Merkle tree below trackedPath.
// Leaves hash file content only; directory nodes hash the concatenation of
// their children's hashes ordered by child name.
func (hasher *Hasher) ComputeHash(trackedPath string) string {
	if len(trackedPath) == 0 {
		hasher.logger.Warn(hashWalkFailureMessageConstant, zap.Error(errEmptyTrackedPath))
		return ZeroHash
	}

	if _, statError := hasher.fileSystem.Stat(trackedPath); statError != nil {
		if errors.Is(statError, os.ErrNotExist) {
			hasher.logger.Warn(hashMissingPathMessageConstant, zap.String(hashPathFieldNameConstant, trackedPath))
		} else {
			hasher.logger.Warn(hashWalkFailureMessageConstant, zap.String(hashPathFieldNameConstant, trackedPath), zap.Error(statError))
		}
		return ZeroHash
	}

	rootDigest, hashError := hasher.hashNode(trackedPath)
	if hashError != nil {
		hasher.logger.Warn(hashWalkFailureMessageConstant, zap.String(hashPathFieldNameConstant, trackedPath), zap.Error(hashError))
		return ZeroHash
	}

	encoded := make([]byte, hex.EncodedLen(len(rootDigest)))
	hex.Encode(encoded, rootDigest)
	hashValue := string(encoded)

	hasher.logger.Debug(hashComputedMessageConstant, zap.String(hashPathFieldNameConstant, trackedPath), zap.String(hashValueFieldNameConstant, hashValue))
	return hashValue
}

func (hasher *Hasher) hashNode(nodePath string) ([]byte, error) {
	nodeInfo, statError := hasher.fileSystem.Stat(nodePath)
	if statError != nil {
		return nil, statError
	}
	if !nodeInfo.IsDir() {
		return hasher.hashFile(nodePath)
	}

	entries, readError := afero.ReadDir(hasher.fileSystem, nodePath)
	if readError != nil {
		return nil, readError
	}
	sort.Slice(entries, func(leftIndex int, rightIndex int) bool {
		return entries[leftIndex].Name() < entries[rightIndex].Name()
	})

	directoryDigest, digestError := blake2b.New256(nil)
	if digestError != nil {
		return nil, digestError
	}
	for _, entry := range entries {
		childDigest, childError := hasher.hashNode(filepath.Join(nodePath, entry.Name()))
		if childError != nil {
			return nil, childError
		}
		directoryDigest.Write(childDigest)
	}
	return directoryDigest.Sum(nil), nil
}

func (hasher *Hasher) hashFile(filePath string) ([]byte, error) {
	file, openError := hasher.fileSystem.Open(filePath)
	if openError != nil {
		return nil, openError
	}
	defer file.Close()

	fileDigest, digestError := blake2b.New256(nil)
	if digestError != nil {
		return nil, digestError
	}
	if _, copyError := io.Copy(fileDigest, file); copyError != nil {
		return nil, copyError
	}
	return fileDigest.Sum(nil), nil
}
