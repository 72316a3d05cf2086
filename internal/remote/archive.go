package remote

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	archiveExtensionConstant           = ".tgz"
	archiveDirectoryPermissionConstant = 0o755
	archiveCreateTemplateConstant      = "unable to create archive: %w"
	archiveStoreTemplateConstant       = "unable to store archive: %w"
	archiveExtractTemplateConstant     = "unable to unpack archive %s: %w"
	archiveCompressingMessageConstant  = "Compressing push paths"
	archiveAddedMessageConstant        = "Added path to archive"
	archiveMissingMessageConstant      = "Push path does not exist"
	archiveCreatedDirMessageConstant   = "Created maid temp dir"
	archivePathFieldNameConstant       = "path"
	archiveFileFieldNameConstant       = "archive"
)

// ErrArchiveRemoval indicates a temporary archive could not be removed.
var ErrArchiveRemoval = errors.New("unable to remove temporary archive, does it exist?")

// ArchiveManager creates and unpacks the gzip tarballs exchanged with the worker.
type ArchiveManager struct {
	fileSystem    afero.Fs
	tempDirectory string
	logger        *zap.Logger
}

// NewArchiveManager constructs an ArchiveManager writing temporary archives into tempDirectory.
func NewArchiveManager(fileSystem afero.Fs, tempDirectory string, logger *zap.Logger) *ArchiveManager {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveManager{fileSystem: fileSystem, tempDirectory: tempDirectory, logger: logger}
}

// CreatePushArchive packs every push path, resolved against baseDirectory, and
// returns the archive location. Entry names keep the path as written.
func (manager *ArchiveManager) CreatePushArchive(pushPaths []string, baseDirectory string) (string, error) {
	archivePath, pathError := manager.newArchivePath()
	if pathError != nil {
		return "", fmt.Errorf(archiveCreateTemplateConstant, pathError)
	}

	archiveFile, createError := manager.fileSystem.Create(archivePath)
	if createError != nil {
		return "", fmt.Errorf(archiveCreateTemplateConstant, createError)
	}
	defer archiveFile.Close()

	compressor := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(compressor)

	manager.logger.Debug(archiveCompressingMessageConstant, zap.String(archiveFileFieldNameConstant, archivePath))
	for _, pushPath := range pushPaths {
		if appendError := manager.appendPath(tarWriter, pushPath, baseDirectory); appendError != nil {
			return "", fmt.Errorf(archiveCreateTemplateConstant, appendError)
		}
	}

	if closeError := tarWriter.Close(); closeError != nil {
		return "", fmt.Errorf(archiveCreateTemplateConstant, closeError)
	}
	if closeError := compressor.Close(); closeError != nil {
		return "", fmt.Errorf(archiveCreateTemplateConstant, closeError)
	}
	return archivePath, nil
}

// StoreResultArchive writes a received archive into the temp directory.
func (manager *ArchiveManager) StoreResultArchive(contents []byte) (string, error) {
	archivePath, pathError := manager.newArchivePath()
	if pathError != nil {
		return "", fmt.Errorf(archiveStoreTemplateConstant, pathError)
	}
	if writeError := afero.WriteFile(manager.fileSystem, archivePath, contents, 0o644); writeError != nil {
		return "", fmt.Errorf(archiveStoreTemplateConstant, writeError)
	}
	return archivePath, nil
}

// Extract unpacks archivePath into destination.
func (manager *ArchiveManager) Extract(archivePath string, destination string) error {
	archiveFile, openError := manager.fileSystem.Open(archivePath)
	if openError != nil {
		return fmt.Errorf(archiveExtractTemplateConstant, archivePath, openError)
	}
	defer archiveFile.Close()

	decompressor, readerError := gzip.NewReader(archiveFile)
	if readerError != nil {
		return fmt.Errorf(archiveExtractTemplateConstant, archivePath, readerError)
	}
	defer decompressor.Close()

	tarReader := tar.NewReader(decompressor)
	for {
		header, nextError := tarReader.Next()
		if errors.Is(nextError, io.EOF) {
			return nil
		}
		if nextError != nil {
			return fmt.Errorf(archiveExtractTemplateConstant, archivePath, nextError)
		}
		if entryError := manager.extractEntry(tarReader, header, destination); entryError != nil {
			return fmt.Errorf(archiveExtractTemplateConstant, archivePath, entryError)
		}
	}
}

// Remove deletes a temporary archive.
func (manager *ArchiveManager) Remove(archivePath string) error {
	if removeError := manager.fileSystem.Remove(archivePath); removeError != nil {
		return fmt.Errorf("%w: %v", ErrArchiveRemoval, removeError)
	}
	return nil
}

func (manager *ArchiveManager) newArchivePath() (string, error) {
	exists, statError := afero.DirExists(manager.fileSystem, manager.tempDirectory)
	if statError != nil {
		return "", statError
	}
	if !exists {
		if createError := manager.fileSystem.MkdirAll(manager.tempDirectory, archiveDirectoryPermissionConstant); createError != nil {
			return "", createError
		}
		manager.logger.Debug(archiveCreatedDirMessageConstant, zap.String(archivePathFieldNameConstant, manager.tempDirectory))
	}
	return filepath.Join(manager.tempDirectory, uuid.NewString()+archiveExtensionConstant), nil
}

func (manager *ArchiveManager) appendPath(tarWriter *tar.Writer, pushPath string, baseDirectory string) error {
	sourcePath := pushPath
	if !filepath.IsAbs(sourcePath) {
		sourcePath = filepath.Join(baseDirectory, pushPath)
	}

	info, statError := manager.fileSystem.Stat(sourcePath)
	if statError != nil {
		if errors.Is(statError, os.ErrNotExist) {
			manager.logger.Warn(archiveMissingMessageConstant, zap.String(archivePathFieldNameConstant, pushPath))
			return nil
		}
		return statError
	}

	if !info.IsDir() {
		if writeError := manager.writeFileEntry(tarWriter, sourcePath, filepath.ToSlash(pushPath), info); writeError != nil {
			return writeError
		}
		manager.logger.Debug(archiveAddedMessageConstant, zap.String(archivePathFieldNameConstant, pushPath))
		return nil
	}

	walkError := afero.Walk(manager.fileSystem, sourcePath, func(walkedPath string, walkedInfo fs.FileInfo, walkError error) error {
		if walkError != nil {
			return walkError
		}
		relativePath, relativeError := filepath.Rel(sourcePath, walkedPath)
		if relativeError != nil {
			return relativeError
		}
		entryName := filepath.ToSlash(filepath.Join(pushPath, relativePath))
		if walkedInfo.IsDir() {
			header, headerError := tar.FileInfoHeader(walkedInfo, "")
			if headerError != nil {
				return headerError
			}
			header.Name = entryName + "/"
			return tarWriter.WriteHeader(header)
		}
		if !walkedInfo.Mode().IsRegular() {
			return nil
		}
		return manager.writeFileEntry(tarWriter, walkedPath, entryName, walkedInfo)
	})
	if walkError != nil {
		return walkError
	}
	manager.logger.Debug(archiveAddedMessageConstant, zap.String(archivePathFieldNameConstant, pushPath))
	return nil
}

func (manager *ArchiveManager) writeFileEntry(tarWriter *tar.Writer, sourcePath string, entryName string, info fs.FileInfo) error {
	header, headerError := tar.FileInfoHeader(info, "")
	if headerError != nil {
		return headerError
	}
	header.Name = entryName
	if writeError := tarWriter.WriteHeader(header); writeError != nil {
		return writeError
	}

	sourceFile, openError := manager.fileSystem.Open(sourcePath)
	if openError != nil {
		return openError
	}
	defer sourceFile.Close()

	_, copyError := io.Copy(tarWriter, sourceFile)
	return copyError
}

func (manager *ArchiveManager) extractEntry(tarReader *tar.Reader, header *tar.Header, destination string) error {
	targetPath := filepath.Join(destination, filepath.FromSlash(header.Name))
	switch header.Typeflag {
	case tar.TypeDir:
		return manager.fileSystem.MkdirAll(targetPath, archiveDirectoryPermissionConstant)
	case tar.TypeReg:
		if directoryError := manager.fileSystem.MkdirAll(filepath.Dir(targetPath), archiveDirectoryPermissionConstant); directoryError != nil {
			return directoryError
		}
		targetFile, openError := manager.fileSystem.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(header.Mode).Perm())
		if openError != nil {
			return openError
		}
		if _, copyError := io.Copy(targetFile, tarReader); copyError != nil {
			targetFile.Close()
			return copyError
		}
		return targetFile.Close()
	default:
		return nil
	}
}
