package maidfile

import (
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

const (
	placeholderOpenConstant  = "%{"
	placeholderCloseConstant = "}"

	// CurrentDirectoryPlaceholder is the task path sentinel meaning the invocation directory.
	CurrentDirectoryPlaceholder = "%{dir.current}"

	platformKeyConstant          = "os.platform"
	architectureKeyConstant      = "os.arch"
	currentDirectoryKeyConstant  = "dir.current"
	homeDirectoryKeyConstant     = "dir.home"
	projectDirectoryKeyConstant  = "dir.project"
	argumentKeyPrefixConstant    = "arg."
	environmentKeyPrefixConstant = "env."
)

var platformNames = map[string]string{"darwin": "macos"}

var architectureNames = map[string]string{"amd64": "x86_64", "arm64": "aarch64", "386": "x86"}

// TableRequest carries everything the placeholder table is derived from.
type TableRequest struct {
	Maidfile         Maidfile
	Arguments        []string
	ProjectRoot      string
	CurrentDirectory string
	HomeDirectory    string
	Platform         string
	Architecture     string
}

// Table is the string keyed lookup used to render `%{key}` placeholders.
type Table struct {
	values      map[string]string
	environment map[string]string
}

// NewTable builds the placeholder table. Env entries are rendered in key
// order against the entries defined before them, and embedded double quotes
// are escaped.
func NewTable(request TableRequest) Table {
	platform := request.Platform
	if len(platform) == 0 {
		platform = runtime.GOOS
	}
	if mapped, exists := platformNames[platform]; exists {
		platform = mapped
	}
	architecture := request.Architecture
	if len(architecture) == 0 {
		architecture = runtime.GOARCH
	}
	if mapped, exists := architectureNames[architecture]; exists {
		architecture = mapped
	}

	table := Table{
		values: map[string]string{
			platformKeyConstant:         platform,
			architectureKeyConstant:     architecture,
			currentDirectoryKeyConstant: request.CurrentDirectory,
			homeDirectoryKeyConstant:    request.HomeDirectory,
			projectDirectoryKeyConstant: request.ProjectRoot,
		},
		environment: map[string]string{},
	}

	for position, argument := range request.Arguments {
		table.values[argumentKeyPrefixConstant+strconv.Itoa(position)] = argument
	}

	environmentKeys := make([]string, 0, len(request.Maidfile.Env))
	for key := range request.Maidfile.Env {
		environmentKeys = append(environmentKeys, key)
	}
	sort.Strings(environmentKeys)
	for _, key := range environmentKeys {
		rawValue := cast.ToString(request.Maidfile.Env[key])
		renderedValue := strings.ReplaceAll(table.Render(rawValue), `"`, `\"`)
		table.environment[key] = renderedValue
		table.values[environmentKeyPrefixConstant+key] = renderedValue
	}

	return table
}

// Lookup returns the value stored for key.
func (table Table) Lookup(key string) (string, bool) {
	value, exists := table.values[key]
	return value, exists
}

// Render replaces every `%{key}` placeholder. Unknown keys render as empty text.
func (table Table) Render(text string) string {
	var builder strings.Builder
	remaining := text
	for {
		openIndex := strings.Index(remaining, placeholderOpenConstant)
		if openIndex < 0 {
			builder.WriteString(remaining)
			break
		}
		closeIndex := strings.Index(remaining[openIndex+len(placeholderOpenConstant):], placeholderCloseConstant)
		if closeIndex < 0 {
			builder.WriteString(remaining)
			break
		}
		keyStart := openIndex + len(placeholderOpenConstant)
		key := strings.TrimSpace(remaining[keyStart : keyStart+closeIndex])
		builder.WriteString(remaining[:openIndex])
		builder.WriteString(table.values[key])
		remaining = remaining[keyStart+closeIndex+len(placeholderCloseConstant):]
	}
	return builder.String()
}

// RenderLines renders each script line.
func (table Table) RenderLines(lines []string) []string {
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered = append(rendered, table.Render(line))
	}
	return rendered
}

// Environment returns the rendered env entries exported to child processes.
func (table Table) Environment() map[string]string {
	environment := make(map[string]string, len(table.environment))
	for key, value := range table.environment {
		environment[key] = value
	}
	return environment
}

// Values returns a copy of every placeholder entry.
func (table Table) Values() map[string]string {
	values := make(map[string]string, len(table.values))
	for key, value := range table.values {
		values[key] = value
	}
	return values
}
