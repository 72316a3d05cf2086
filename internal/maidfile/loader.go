package maidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultFileName is the descriptor base name searched for by default.
	DefaultFileName = "maidfile"

	maidfileNotFoundTemplateConstant     = "cannot find %s. Does it exist?"
	maidfileReadTemplateConstant         = "cannot read maidfile %s: %w"
	maidfileImportTemplateConstant       = "%s cannot be imported. Does the file exist?"
	maidfileImportFailedTemplateConstant = "unable to import %s: %v"
	maidfileFoundMessageConstant         = "Found tasks"
	maidfileImportedMessageConstant      = "Imported tasks"
	maidfilePathFieldNameConstant        = "path"
	maidfileFormatFieldNameConstant      = "format"
)

var searchExtensions = []string{"", "toml", "yaml", "yml", "json", "hcl"}

// ErrMaidfileNotFound is wrapped by NotFoundError.
var ErrMaidfileNotFound = errors.New("maidfile not found")

// NotFoundError reports that no descriptor was found walking up from a directory.
type NotFoundError struct {
	FileName       string
	StartDirectory string
}

// Error describes the failed search.
func (notFoundError NotFoundError) Error() string {
	return fmt.Sprintf(maidfileNotFoundTemplateConstant, notFoundError.FileName)
}

// Unwrap exposes ErrMaidfileNotFound.
func (notFoundError NotFoundError) Unwrap() error {
	return ErrMaidfileNotFound
}

// ImportError reports an import entry that could not be loaded.
type ImportError struct {
	ImportPath string
	Cause      error
}

// Error describes the failed import.
func (importError ImportError) Error() string {
	if errors.Is(importError.Cause, ErrMaidfileNotFound) {
		return fmt.Sprintf(maidfileImportTemplateConstant, importError.ImportPath)
	}
	return fmt.Sprintf(maidfileImportFailedTemplateConstant, importError.ImportPath, importError.Cause)
}

// Unwrap exposes the underlying failure.
func (importError ImportError) Unwrap() error {
	return importError.Cause
}

// Document is a loaded descriptor together with its location.
type Document struct {
	Maidfile    Maidfile
	Path        string
	ProjectRoot string
}

// Loader locates and parses descriptors.
type Loader struct {
	fileSystem afero.Fs
	logger     *zap.Logger
}

// NewLoader constructs a Loader reading through the provided filesystem.
func NewLoader(fileSystem afero.Fs, logger *zap.Logger) *Loader {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fileSystem: fileSystem, logger: logger}
}

// Find walks from startDirectory towards the filesystem root looking for
// fileName with any supported extension. Names are matched case-insensitively.
func (loader *Loader) Find(startDirectory string, fileName string) (string, error) {
	if len(strings.TrimSpace(fileName)) == 0 {
		fileName = DefaultFileName
	}

	currentDirectory := filepath.Clean(startDirectory)
	for {
		if foundPath, found := loader.findInDirectory(currentDirectory, fileName); found {
			return foundPath, nil
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			break
		}
		currentDirectory = parentDirectory
	}
	return "", NotFoundError{FileName: fileName, StartDirectory: startDirectory}
}

// Load finds the descriptor, parses it, and merges every import into it.
// Imported tasks and env entries replace same-named entries.
func (loader *Loader) Load(startDirectory string, fileName string) (Document, error) {
	descriptorPath, findError := loader.Find(startDirectory, fileName)
	if findError != nil {
		return Document{}, findError
	}
	projectRoot := filepath.Dir(descriptorPath)

	document, readError := loader.readDocument(descriptorPath)
	if readError != nil {
		return Document{}, readError
	}

	importPaths, importsError := decodeImportList(document)
	if importsError != nil {
		return Document{}, fmt.Errorf(maidfileReadTemplateConstant, descriptorPath, importsError)
	}
	for _, importPath := range importPaths {
		importedDocument, importError := loader.loadImport(projectRoot, importPath)
		if importError != nil {
			return Document{}, ImportError{ImportPath: importPath, Cause: importError}
		}
		document = mergeDocuments(document, importedDocument)
		loader.logger.Debug(maidfileImportedMessageConstant, zap.String(maidfilePathFieldNameConstant, importPath))
	}

	maidfile, decodeError := decodeMaidfile(document)
	if decodeError != nil {
		return Document{}, fmt.Errorf(maidfileReadTemplateConstant, descriptorPath, decodeError)
	}
	return Document{Maidfile: maidfile, Path: descriptorPath, ProjectRoot: projectRoot}, nil
}

func (loader *Loader) loadImport(projectRoot string, importPath string) (map[string]any, error) {
	candidatePath := importPath
	if !filepath.IsAbs(candidatePath) {
		candidatePath = filepath.Join(projectRoot, importPath)
	}
	if isFile, _ := loader.isRegularFile(candidatePath); isFile {
		return loader.readDocument(candidatePath)
	}

	foundPath, findError := loader.Find(filepath.Dir(candidatePath), filepath.Base(candidatePath))
	if findError != nil {
		return nil, findError
	}
	return loader.readDocument(foundPath)
}

func (loader *Loader) readDocument(descriptorPath string) (map[string]any, error) {
	contents, readError := afero.ReadFile(loader.fileSystem, descriptorPath)
	if readError != nil {
		return nil, fmt.Errorf(maidfileReadTemplateConstant, descriptorPath, readError)
	}

	format := FormatForExtension(filepath.Ext(descriptorPath))
	loader.logger.Debug(maidfileFoundMessageConstant, zap.String(maidfilePathFieldNameConstant, descriptorPath), zap.String(maidfileFormatFieldNameConstant, string(format)))

	document, decodeError := decodeDocument(contents, format, descriptorPath)
	if decodeError != nil {
		return nil, fmt.Errorf(maidfileReadTemplateConstant, descriptorPath, decodeError)
	}
	return document, nil
}

func (loader *Loader) findInDirectory(directory string, fileName string) (string, bool) {
	entries, readError := afero.ReadDir(loader.fileSystem, directory)
	if readError != nil {
		return "", false
	}
	for _, extension := range searchExtensions {
		candidateName := fileName
		if len(extension) > 0 {
			candidateName = fileName + "." + extension
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(entry.Name(), candidateName) {
				continue
			}
			return filepath.Join(directory, entry.Name()), true
		}
	}
	return "", false
}

func (loader *Loader) isRegularFile(candidatePath string) (bool, error) {
	info, statError := loader.fileSystem.Stat(candidatePath)
	if statError != nil {
		if errors.Is(statError, os.ErrNotExist) {
			return false, nil
		}
		return false, statError
	}
	return info.Mode().IsRegular(), nil
}

func decodeImportList(document map[string]any) ([]string, error) {
	rawImports, present := document["import"]
	if !present || rawImports == nil {
		return nil, nil
	}
	switch typed := rawImports.(type) {
	case string:
		return []string{typed}, nil
	case []any:
		importPaths := make([]string, 0, len(typed))
		for _, entry := range typed {
			importPath, isString := entry.(string)
			if !isString {
				return nil, fmt.Errorf("import entries must be strings, found %T", entry)
			}
			importPaths = append(importPaths, importPath)
		}
		return importPaths, nil
	default:
		return nil, fmt.Errorf("import must be a list of paths, found %T", rawImports)
	}
}
