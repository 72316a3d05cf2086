package maidfile_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/maidfile"
)

const (
	testProjectRootConstant       = "/workspace/project"
	testNestedDirectoryConstant   = "/workspace/project/services/api"
	testTOMLCaseNameConstant      = "toml_without_extension"
	testYAMLCaseNameConstant      = "yaml_extension"
	testJSONCaseNameConstant      = "json_extension"
	testHCLCaseNameConstant       = "hcl_extension"
	testUpperCaseCaseNameConstant = "case_insensitive_name"
)

const testTOMLDescriptorConstant = `
[project]
name = "demo"
version = "1.0.0"

[project.server]
token = "secret"
[project.server.address]
host = "worker.local"
port = 3500
tls = false

[env]
GREETING = "hello"

[tasks.build]
script = ["go vet ./...", "go build ./..."]
info = "compile"
depends = ["lint", "log:generate"]
[tasks.build.cache]
path = "src"
target = ["bin/app"]

[tasks.lint]
script = "golangci-lint run"
`

const testYAMLDescriptorConstant = `
project:
  name: demo
  version: 1.0.0
  server:
    token: secret
    address:
      host: worker.local
      port: 3500
      tls: false
env:
  GREETING: hello
tasks:
  build:
    script:
      - go vet ./...
      - go build ./...
    info: compile
    depends: [lint, "log:generate"]
    cache:
      path: src
      target: [bin/app]
  lint:
    script: golangci-lint run
`

const testJSONDescriptorConstant = `{
  "project": {"name": "demo", "version": "1.0.0", "server": {"token": "secret", "address": {"host": "worker.local", "port": 3500, "tls": false}}},
  "env": {"GREETING": "hello"},
  "tasks": {
    "build": {"script": ["go vet ./...", "go build ./..."], "info": "compile", "depends": ["lint", "log:generate"], "cache": {"path": "src", "target": ["bin/app"]}},
    "lint": {"script": "golangci-lint run"}
  }
}`

const testHCLDescriptorConstant = `
project {
  name    = "demo"
  version = "1.0.0"
  server {
    token = "secret"
    address {
      host = "worker.local"
      port = 3500
      tls  = false
    }
  }
}

env {
  GREETING = "hello"
}

tasks "build" {
  script  = ["go vet ./...", "go build ./..."]
  info    = "compile"
  depends = ["lint", "log:generate"]
  cache {
    path   = "src"
    target = ["bin/app"]
  }
}

tasks "lint" {
  script = "golangci-lint run"
}
`

func expectedDescriptor() maidfile.Maidfile {
	return maidfile.Maidfile{
		Env: map[string]any{"GREETING": "hello"},
		Project: &maidfile.Project{
			Name:    "demo",
			Version: "1.0.0",
			Server: &maidfile.Server{
				Token:   "secret",
				Address: maidfile.Address{Host: "worker.local", Port: 3500, TLS: false},
			},
		},
		Tasks: map[string]maidfile.Task{
			"build": {
				Script:  maidfile.Script{"go vet ./...", "go build ./..."},
				Info:    "compile",
				Depends: []string{"lint", "log:generate"},
				Cache:   &maidfile.Cache{Path: "src", Target: []string{"bin/app"}},
			},
			"lint": {Script: maidfile.Script{"golangci-lint run"}},
		},
	}
}

func writeFile(testInstance *testing.T, fileSystem afero.Fs, filePath string, contents string) {
	testInstance.Helper()
	require.NoError(testInstance, fileSystem.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(testInstance, afero.WriteFile(fileSystem, filePath, []byte(contents), 0o644))
}

func TestLoaderParsesEveryFormat(testInstance *testing.T) {
	testCases := []struct {
		name     string
		fileName string
		contents string
	}{
		{name: testTOMLCaseNameConstant, fileName: "maidfile", contents: testTOMLDescriptorConstant},
		{name: testYAMLCaseNameConstant, fileName: "maidfile.yaml", contents: testYAMLDescriptorConstant},
		{name: testJSONCaseNameConstant, fileName: "maidfile.json", contents: testJSONDescriptorConstant},
		{name: testHCLCaseNameConstant, fileName: "maidfile.hcl", contents: testHCLDescriptorConstant},
		{name: testUpperCaseCaseNameConstant, fileName: "Maidfile.TOML", contents: testTOMLDescriptorConstant},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			writeFile(testInstance, fileSystem, filepath.Join(testProjectRootConstant, testCase.fileName), testCase.contents)
			require.NoError(testInstance, fileSystem.MkdirAll(testNestedDirectoryConstant, 0o755))

			loader := maidfile.NewLoader(fileSystem, zap.NewNop())
			document, loadError := loader.Load(testNestedDirectoryConstant, maidfile.DefaultFileName)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testProjectRootConstant, document.ProjectRoot)
			require.Equal(testInstance, filepath.Join(testProjectRootConstant, testCase.fileName), document.Path)

			if difference := cmp.Diff(expectedDescriptor(), document.Maidfile); len(difference) > 0 {
				testInstance.Fatalf("unexpected descriptor (-want +got):\n%s", difference)
			}
		})
	}
}

func TestLoaderReportsMissingDescriptor(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(testNestedDirectoryConstant, 0o755))

	_, loadError := maidfile.NewLoader(fileSystem, nil).Load(testNestedDirectoryConstant, maidfile.DefaultFileName)
	require.ErrorIs(testInstance, loadError, maidfile.ErrMaidfileNotFound)

	var notFoundError maidfile.NotFoundError
	require.ErrorAs(testInstance, loadError, &notFoundError)
	require.Equal(testInstance, "cannot find maidfile. Does it exist?", loadError.Error())
}

func TestLoaderMergesImports(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	writeFile(testInstance, fileSystem, filepath.Join(testProjectRootConstant, "maidfile"), `
import = ["tasks/extra.toml", "tasks/shared"]

[project]
name = "demo"

[env]
MODE = "debug"
KEEP = "yes"

[tasks.build]
script = "make"
`)
	writeFile(testInstance, fileSystem, filepath.Join(testProjectRootConstant, "tasks", "extra.toml"), `
[env]
MODE = "release"

[tasks.build]
script = "make release"

[tasks.test]
script = "make test"
`)
	writeFile(testInstance, fileSystem, filepath.Join(testProjectRootConstant, "tasks", "shared.yaml"), `
tasks:
  docs:
    script: make docs
`)

	document, loadError := maidfile.NewLoader(fileSystem, zap.NewNop()).Load(testProjectRootConstant, maidfile.DefaultFileName)
	require.NoError(testInstance, loadError)

	require.Equal(testInstance, "demo", document.Maidfile.Project.Name)
	require.Equal(testInstance, map[string]any{"MODE": "release", "KEEP": "yes"}, document.Maidfile.Env)
	require.Equal(testInstance, maidfile.Script{"make release"}, document.Maidfile.Tasks["build"].Script)
	require.Equal(testInstance, []string{"build", "docs", "test"}, document.Maidfile.TaskNames())
}

func TestLoaderReportsFailedImports(testInstance *testing.T) {
	testCases := []struct {
		name           string
		importedFiles  map[string]string
		expectedPrefix string
		expectNotFound bool
	}{
		{
			name:           "missing import",
			expectedPrefix: "extra.toml cannot be imported. Does the file exist?",
			expectNotFound: true,
		},
		{
			name:           "unparsable import",
			importedFiles:  map[string]string{"extra.toml": "[tasks.b\nscript = \"true\"\n"},
			expectedPrefix: "unable to import extra.toml: ",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			fileSystem := afero.NewMemMapFs()
			writeFile(subtest, fileSystem, filepath.Join(testProjectRootConstant, "maidfile"), "import = [\"extra.toml\"]\n[tasks.a]\nscript = \"true\"\n")
			for name, content := range testCase.importedFiles {
				writeFile(subtest, fileSystem, filepath.Join(testProjectRootConstant, name), content)
			}

			_, loadError := maidfile.NewLoader(fileSystem, nil).Load(testProjectRootConstant, maidfile.DefaultFileName)
			var importError maidfile.ImportError
			require.ErrorAs(subtest, loadError, &importError)
			require.True(subtest, strings.HasPrefix(importError.Error(), testCase.expectedPrefix), importError.Error())
			require.NotContains(subtest, importError.Error(), "%!")
			require.Equal(subtest, testCase.expectNotFound, errors.Is(loadError, maidfile.ErrMaidfileNotFound))
		})
	}
}

func TestImportErrorRendersCause(testInstance *testing.T) {
	cause := errors.New("bad syntax")
	importError := maidfile.ImportError{ImportPath: "extra.toml", Cause: cause}
	require.Equal(testInstance, "unable to import extra.toml: bad syntax", importError.Error())
	require.ErrorIs(testInstance, importError, cause)
}

func TestLoaderRejectsNonStringScriptEntries(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	writeFile(testInstance, fileSystem, filepath.Join(testProjectRootConstant, "maidfile"), "[tasks.a]\nscript = [\"echo\", 3]\n")

	_, loadError := maidfile.NewLoader(fileSystem, nil).Load(testProjectRootConstant, maidfile.DefaultFileName)
	var valueError maidfile.ScriptValueError
	require.ErrorAs(testInstance, loadError, &valueError)
}

func TestTaskListings(testInstance *testing.T) {
	descriptor := maidfile.Maidfile{
		Tasks: map[string]maidfile.Task{
			"build":    {Script: maidfile.Script{"make"}},
			"_private": {Script: maidfile.Script{"make private"}},
			"hidden":   {Script: maidfile.Script{"make hidden"}, Hide: true},
			"deploy":   {Script: maidfile.Script{"make deploy"}, Remote: &maidfile.Remote{Exclusive: true}},
			"package":  {Script: maidfile.Script{"make package"}, Remote: &maidfile.Remote{}},
		},
	}

	require.Equal(testInstance, []string{"build", "package"}, descriptor.LocalTaskNames())
	require.Equal(testInstance, []string{"deploy", "package"}, descriptor.RemoteTaskNames())
}

func TestParseDependency(testInstance *testing.T) {
	require.Equal(testInstance, maidfile.Dependency{Name: "generate", Verbose: true}, maidfile.ParseDependency("log:generate"))
	require.Equal(testInstance, maidfile.Dependency{Name: "lint"}, maidfile.ParseDependency("lint"))
}

func TestScriptMarshalsCompactly(testInstance *testing.T) {
	descriptor := maidfile.Maidfile{Tasks: map[string]maidfile.Task{
		"a": {Script: maidfile.Script{"echo a"}},
		"b": {Script: maidfile.Script{"echo b", "echo c"}},
	}}
	encoded, encodeError := descriptor.ToJSON()
	require.NoError(testInstance, encodeError)
	require.JSONEq(testInstance, `{"tasks":{"a":{"script":"echo a"},"b":{"script":["echo b","echo c"]}}}`, encoded)
}

func TestTableRendersPlaceholders(testInstance *testing.T) {
	table := maidfile.NewTable(maidfile.TableRequest{
		Maidfile: maidfile.Maidfile{Env: map[string]any{
			"BASE":   "%{dir.project}/out",
			"PORT":   int64(8080),
			"QUOTED": `say "hi"`,
			"TARGET": "%{env.BASE}/bin",
		}},
		Arguments:        []string{"build", "release"},
		ProjectRoot:      testProjectRootConstant,
		CurrentDirectory: testNestedDirectoryConstant,
		HomeDirectory:    "/home/maid",
		Platform:         "darwin",
		Architecture:     "arm64",
	})

	require.Equal(testInstance, "macos aarch64", table.Render("%{os.platform} %{os.arch}"))
	require.Equal(testInstance, "build release", table.Render("%{arg.0} %{arg.1}"))
	require.Equal(testInstance, testNestedDirectoryConstant+" /home/maid", table.Render("%{dir.current} %{dir.home}"))
	require.Equal(testInstance, "port=8080 missing=", table.Render("port=%{env.PORT} missing=%{env.UNKNOWN}"))
	require.Equal(testInstance, "unterminated %{dir.home", table.Render("unterminated %{dir.home"))

	environment := table.Environment()
	require.Equal(testInstance, testProjectRootConstant+"/out", environment["BASE"])
	require.Equal(testInstance, testProjectRootConstant+"/out/bin", environment["TARGET"])
	require.Equal(testInstance, `say \"hi\"`, environment["QUOTED"])
	require.Equal(testInstance, "8080", environment["PORT"])
}
