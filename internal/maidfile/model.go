// Package maidfile loads project descriptors and builds the placeholder table
// used to render task scripts.
package maidfile

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	hiddenTaskPrefixConstant        = "_"
	verboseDependencyPrefixConstant = "log:"
)

// Maidfile is the merged project descriptor.
type Maidfile struct {
	Import  []string        `mapstructure:"import" json:"import,omitempty"`
	Env     map[string]any  `mapstructure:"env" json:"env,omitempty"`
	Project *Project        `mapstructure:"project" json:"project,omitempty"`
	Tasks   map[string]Task `mapstructure:"tasks" json:"tasks"`
}

// Project carries descriptive metadata and the optional remote worker address.
type Project struct {
	Name    string  `mapstructure:"name" json:"name,omitempty"`
	Version string  `mapstructure:"version" json:"version,omitempty"`
	Server  *Server `mapstructure:"server" json:"server,omitempty"`
}

// Server identifies the remote worker.
type Server struct {
	Address Address `mapstructure:"address" json:"address"`
	Token   string  `mapstructure:"token" json:"token"`
}

// Address is the remote worker's network location.
type Address struct {
	Host string `mapstructure:"host" json:"host"`
	Port int64  `mapstructure:"port" json:"port"`
	TLS  bool   `mapstructure:"tls" json:"tls"`
}

// Task is a single named unit of work.
type Task struct {
	Script  Script   `mapstructure:"script" json:"script"`
	Hide    bool     `mapstructure:"hide" json:"hide,omitempty"`
	Path    string   `mapstructure:"path" json:"path,omitempty"`
	Info    string   `mapstructure:"info" json:"info,omitempty"`
	Cache   *Cache   `mapstructure:"cache" json:"cache,omitempty"`
	Remote  *Remote  `mapstructure:"remote" json:"remote,omitempty"`
	Depends []string `mapstructure:"depends" json:"depends,omitempty"`
}

// Cache declares the tracked source path and the artifacts it produces.
type Cache struct {
	Path   string   `mapstructure:"path" json:"path"`
	Target []string `mapstructure:"target" json:"target"`
}

// Enabled reports whether the cache declaration is usable.
func (cache *Cache) Enabled() bool {
	return cache != nil && len(strings.TrimSpace(cache.Path)) > 0 && len(cache.Target) > 0
}

// Remote configures dispatch to the remote worker.
type Remote struct {
	Push      []string `mapstructure:"push" json:"push"`
	Pull      string   `mapstructure:"pull" json:"pull"`
	Image     string   `mapstructure:"image" json:"image"`
	Shell     string   `mapstructure:"shell" json:"shell"`
	Silent    bool     `mapstructure:"silent" json:"silent"`
	Exclusive bool     `mapstructure:"exclusive" json:"exclusive"`
}

// Script holds one or more command lines. It serializes as a string when it
// has a single line and as an array otherwise.
type Script []string

// MarshalJSON renders the script in its most compact form.
func (script Script) MarshalJSON() ([]byte, error) {
	if len(script) == 1 {
		return json.Marshal(script[0])
	}
	return json.Marshal([]string(script))
}

// UnmarshalJSON accepts either a single string or an array of strings.
func (script *Script) UnmarshalJSON(data []byte) error {
	var single string
	if json.Unmarshal(data, &single) == nil {
		*script = Script{single}
		return nil
	}
	var lines []string
	if decodeError := json.Unmarshal(data, &lines); decodeError != nil {
		return decodeError
	}
	*script = Script(lines)
	return nil
}

// String joins the script lines for display.
func (script Script) String() string {
	if len(script) == 1 {
		return script[0]
	}
	return "[" + strings.Join(script, ", ") + "]"
}

// Dependency is a parsed entry from a task's depends list.
type Dependency struct {
	Name    string
	Verbose bool
}

// ParseDependency strips the verbose marker from a dependency reference.
func ParseDependency(reference string) Dependency {
	trimmed := strings.TrimSpace(reference)
	if strings.HasPrefix(trimmed, verboseDependencyPrefixConstant) {
		return Dependency{Name: strings.TrimSpace(strings.TrimPrefix(trimmed, verboseDependencyPrefixConstant)), Verbose: true}
	}
	return Dependency{Name: trimmed}
}

// ServerConfiguration returns the remote worker configuration when one is declared.
func (maidfile Maidfile) ServerConfiguration() (Server, bool) {
	if maidfile.Project == nil || maidfile.Project.Server == nil {
		return Server{}, false
	}
	return *maidfile.Project.Server, true
}

// TaskNames returns every task name in lexical order.
func (maidfile Maidfile) TaskNames() []string {
	names := make([]string, 0, len(maidfile.Tasks))
	for name := range maidfile.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LocalTaskNames lists tasks meant to be run locally, skipping names that
// start with an underscore, tasks marked hidden, and exclusive remote tasks.
func (maidfile Maidfile) LocalTaskNames() []string {
	visible := make([]string, 0, len(maidfile.Tasks))
	for _, name := range maidfile.TaskNames() {
		task := maidfile.Tasks[name]
		if strings.HasPrefix(name, hiddenTaskPrefixConstant) || task.Hide {
			continue
		}
		if task.Remote != nil && task.Remote.Exclusive {
			continue
		}
		visible = append(visible, name)
	}
	return visible
}

// RemoteTaskNames lists tasks that declare a remote configuration.
func (maidfile Maidfile) RemoteTaskNames() []string {
	remoteNames := make([]string, 0, len(maidfile.Tasks))
	for _, name := range maidfile.TaskNames() {
		if maidfile.Tasks[name].Remote != nil {
			remoteNames = append(remoteNames, name)
		}
	}
	return remoteNames
}

// ToJSON serializes the descriptor.
func (maidfile Maidfile) ToJSON() (string, error) {
	encoded, encodeError := json.Marshal(maidfile)
	if encodeError != nil {
		return "", encodeError
	}
	return string(encoded), nil
}
