package buildcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	cacheTaskFieldNameConstant             = "task"
	cacheTargetFieldNameConstant           = "target"
	cacheHashFieldNameConstant             = "hash"
	cacheRecordCreatedMessageConstant      = "Created cache record"
	cacheRecordUpdatedMessageConstant      = "Updated cache record hash"
	cacheTargetRestoredMessageConstant     = "Copied target file from cache"
	cacheTargetSavedMessageConstant        = "Saved target file to cache"
	cacheRestoreFailureMessageConstant     = "Cannot copy target file, rebuilt build cache"
	cacheDirectoryErrorTemplateConstant    = "unable to prepare cache directory %s: %w"
	cacheRecordReadErrorTemplateConstant   = "unable to read cache record %s: %w"
	cacheRecordWriteErrorTemplateConstant  = "unable to write cache record %s: %w"
	cacheRecordDecodeErrorTemplateConstant = "unable to decode cache record %s: %w"
	cacheCleanErrorTemplateConstant        = "unable to remove %s: %w"
	cacheTaskNameRequiredMessageConstant   = "cache task name is required"
)

// ErrTaskNameRequired indicates that a cache operation was requested without a task name.
var ErrTaskNameRequired = errors.New(cacheTaskNameRequiredMessageConstant)

// Decision is the outcome of comparing a fresh hash against the stored record.
type Decision int

const (
	// DecisionMiss means the task must run.
	DecisionMiss Decision = iota
	// DecisionHit means the stored artifacts can be reused.
	DecisionHit
)

// String returns a readable decision label.
func (decision Decision) String() string {
	if decision == DecisionHit {
		return "hit"
	}
	return "miss"
}

// CheckRequest describes a cache lookup for one task invocation.
type CheckRequest struct {
	TaskName     string
	Hash         string
	Targets      []string
	Force        bool
	IsDependency bool
}

// ArtifactReport describes one target file copied into or out of the cache.
type ArtifactReport struct {
	Path  string
	Bytes int64
	Error error
}

// RestoreResult summarizes a restore attempt.
type RestoreResult struct {
	Restored  bool
	Artifacts []ArtifactReport
}

// Store persists cache records and artifacts below the project's .maid directory.
type Store struct {
	fileSystem  afero.Fs
	projectRoot string
	logger      *zap.Logger
}

// NewStore constructs a Store rooted at projectRoot.
func NewStore(fileSystem afero.Fs, projectRoot string, logger *zap.Logger) *Store {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fileSystem: fileSystem, projectRoot: projectRoot, logger: logger}
}

// Check reads or creates the task's record and decides whether the cached
// artifacts may be reused. On a miss the record is rewritten with the new hash
// before the task runs.
func (store *Store) Check(request CheckRequest) (Decision, error) {
	if len(request.TaskName) == 0 {
		return DecisionMiss, ErrTaskNameRequired
	}

	taskDirectory := taskCacheDirectory(store.projectRoot, request.TaskName)
	if mkdirError := store.fileSystem.MkdirAll(taskDirectory, cacheDirectoryPermissionsConstant); mkdirError != nil {
		return DecisionMiss, fmt.Errorf(cacheDirectoryErrorTemplateConstant, taskDirectory, mkdirError)
	}

	recordPath := taskRecordPath(store.projectRoot, request.TaskName)
	record, readError := store.readOrCreateRecord(recordPath, request)
	if readError != nil {
		return DecisionMiss, readError
	}

	if record.Hash == request.Hash && !request.Force && !request.IsDependency {
		return DecisionHit, nil
	}

	updatedRecord := Record{Target: request.Targets, Hash: request.Hash}
	if writeError := store.writeRecord(recordPath, updatedRecord); writeError != nil {
		return DecisionMiss, writeError
	}
	store.logger.Debug(cacheRecordUpdatedMessageConstant, zap.String(cacheTaskFieldNameConstant, request.TaskName), zap.String(cacheHashFieldNameConstant, request.Hash))
	return DecisionMiss, nil
}

// Restore copies cached artifacts back to their target locations. When any copy
// fails the task's cache directory is removed and Restored is false so the
// caller falls back to a normal run.
func (store *Store) Restore(taskName string, targets []string) (RestoreResult, error) {
	if len(taskName) == 0 {
		return RestoreResult{}, ErrTaskNameRequired
	}

	artifacts := make([]ArtifactReport, 0, len(targets))
	for _, targetPath := range targets {
		artifactPath := taskArtifactPath(store.projectRoot, taskName, targetPath)
		copiedBytes, copyError := store.copyFile(artifactPath, targetPath)
		if copyError != nil {
			store.logger.Warn(cacheRestoreFailureMessageConstant, zap.String(cacheTaskFieldNameConstant, taskName), zap.String(cacheTargetFieldNameConstant, targetPath), zap.Error(copyError))
			taskDirectory := taskCacheDirectory(store.projectRoot, taskName)
			if removeError := store.fileSystem.RemoveAll(taskDirectory); removeError != nil {
				return RestoreResult{}, fmt.Errorf(cacheCleanErrorTemplateConstant, taskDirectory, removeError)
			}
			return RestoreResult{Restored: false, Artifacts: append(artifacts, ArtifactReport{Path: targetPath, Error: copyError})}, nil
		}
		store.logger.Debug(cacheTargetRestoredMessageConstant, zap.String(cacheTaskFieldNameConstant, taskName), zap.String(cacheTargetFieldNameConstant, targetPath))
		artifacts = append(artifacts, ArtifactReport{Path: targetPath, Bytes: copiedBytes})
	}
	return RestoreResult{Restored: true, Artifacts: artifacts}, nil
}

// Save copies freshly built targets into the task's cache directory. Failures
// are reported per artifact and never abort the remaining copies.
func (store *Store) Save(taskName string, targets []string) []ArtifactReport {
	artifacts := make([]ArtifactReport, 0, len(targets))
	for _, targetPath := range targets {
		artifactPath := taskArtifactPath(store.projectRoot, taskName, targetPath)
		copiedBytes, copyError := store.copyFile(targetPath, artifactPath)
		if copyError == nil {
			store.logger.Debug(cacheTargetSavedMessageConstant, zap.String(cacheTaskFieldNameConstant, taskName), zap.String(cacheTargetFieldNameConstant, targetPath))
		}
		artifacts = append(artifacts, ArtifactReport{Path: targetPath, Bytes: copiedBytes, Error: copyError})
	}
	return artifacts
}

// Clean removes the build cache and the temporary archive directory.
func (store *Store) Clean() error {
	for _, directory := range []string{TempDirectory(store.projectRoot), CacheDirectory(store.projectRoot)} {
		if removeError := store.fileSystem.RemoveAll(directory); removeError != nil {
			return fmt.Errorf(cacheCleanErrorTemplateConstant, directory, removeError)
		}
	}
	return nil
}

// ReadRecord returns the stored record for a task.
func (store *Store) ReadRecord(taskName string) (Record, error) {
	recordPath := taskRecordPath(store.projectRoot, taskName)
	contents, readError := afero.ReadFile(store.fileSystem, recordPath)
	if readError != nil {
		return Record{}, fmt.Errorf(cacheRecordReadErrorTemplateConstant, recordPath, readError)
	}
	record, decodeError := decodeRecord(contents)
	if decodeError != nil {
		return Record{}, fmt.Errorf(cacheRecordDecodeErrorTemplateConstant, recordPath, decodeError)
	}
	return record, nil
}

func (store *Store) readOrCreateRecord(recordPath string, request CheckRequest) (Record, error) {
	exists, existsError := afero.Exists(store.fileSystem, recordPath)
	if existsError != nil {
		return Record{}, fmt.Errorf(cacheRecordReadErrorTemplateConstant, recordPath, existsError)
	}
	if !exists {
		if writeError := store.writeRecord(recordPath, Record{Target: request.Targets}); writeError != nil {
			return Record{}, writeError
		}
		store.logger.Debug(cacheRecordCreatedMessageConstant, zap.String(cacheTaskFieldNameConstant, request.TaskName))
	}
	return store.ReadRecord(request.TaskName)
}

func (store *Store) writeRecord(recordPath string, record Record) error {
	contents, encodeError := encodeRecord(record)
	if encodeError != nil {
		return fmt.Errorf(cacheRecordWriteErrorTemplateConstant, recordPath, encodeError)
	}
	if writeError := afero.WriteFile(store.fileSystem, recordPath, contents, recordFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(cacheRecordWriteErrorTemplateConstant, recordPath, writeError)
	}
	return nil
}

func (store *Store) copyFile(sourcePath string, destinationPath string) (int64, error) {
	sourceFile, openError := store.fileSystem.Open(sourcePath)
	if openError != nil {
		return 0, openError
	}
	defer sourceFile.Close()

	sourceInfo, statError := sourceFile.Stat()
	if statError != nil {
		return 0, statError
	}
	if sourceInfo.IsDir() {
		return 0, &os.PathError{Op: "copy", Path: sourcePath, Err: errors.New("is a directory")}
	}

	if mkdirError := store.fileSystem.MkdirAll(filepath.Dir(destinationPath), cacheDirectoryPermissionsConstant); mkdirError != nil {
		return 0, mkdirError
	}
	if writeError := afero.WriteReader(store.fileSystem, destinationPath, sourceFile); writeError != nil {
		return 0, writeError
	}
	return sourceInfo.Size(), nil
}
