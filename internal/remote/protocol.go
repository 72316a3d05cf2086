// Package remote dispatches tasks to a maid worker over HTTP and websockets.
package remote

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tyemirov/maid/internal/maidfile"
)

const (
	// MaximumFrameSize bounds every message read from the worker.
	MaximumFrameSize = 314572800
	// ConnectionAttempts is the number of websocket dial attempts.
	ConnectionAttempts = 3

	healthPathConstant           = "/api/health"
	gatewayPathConstant          = "/ws/gateway"
	secureHTTPSchemeConstant     = "https"
	plainHTTPSchemeConstant      = "http"
	secureSocketSchemeConstant   = "wss"
	plainSocketSchemeConstant    = "ws"
	unknownLevelTemplateConstant = "unknown event level %q"
	unknownKindTemplateConstant  = "unknown event kind %q"
)

// Level is the severity attached to a worker event.
type Level int

// Event severities in wire order.
const (
	LevelNone Level = iota
	LevelFatal
	LevelDocker
	LevelDebug
	LevelError
	LevelNotice
	LevelInfo
	LevelBuild
	LevelWarning
	LevelSuccess
)

var levelNames = []string{"None", "Fatal", "Docker", "Debug", "Error", "Notice", "Info", "Build", "Warning", "Success"}

// String returns the wire name of the level.
func (level Level) String() string {
	if level < 0 || int(level) >= len(levelNames) {
		return strconv.Itoa(int(level))
	}
	return levelNames[level]
}

// MarshalJSON encodes the level by name.
func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

// UnmarshalJSON decodes a level name.
func (level *Level) UnmarshalJSON(data []byte) error {
	var name string
	if decodeError := json.Unmarshal(data, &name); decodeError != nil {
		return decodeError
	}
	for index, candidate := range levelNames {
		if candidate == name {
			*level = Level(index)
			return nil
		}
	}
	return fmt.Errorf(unknownLevelTemplateConstant, name)
}

// Kind distinguishes worker event types.
type Kind int

// Event kinds in wire order.
const (
	KindDone Kind = iota
	KindBinary
	KindMessage
)

var kindNames = []string{"Done", "Binary", "Message"}

// String returns the wire name of the kind.
func (kind Kind) String() string {
	if kind < 0 || int(kind) >= len(kindNames) {
		return strconv.Itoa(int(kind))
	}
	return kindNames[kind]
}

// MarshalJSON encodes the kind by name.
func (kind Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(kind.String())
}

// UnmarshalJSON decodes a kind name.
func (kind *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if decodeError := json.Unmarshal(data, &name); decodeError != nil {
		return decodeError
	}
	for index, candidate := range kindNames {
		if candidate == name {
			*kind = Kind(index)
			return nil
		}
	}
	return fmt.Errorf(unknownKindTemplateConstant, name)
}

// Event is a structured text frame sent by the worker.
type Event struct {
	Level   Level  `json:"level"`
	Kind    Kind   `json:"kind"`
	Time    int64  `json:"time"`
	Message string `json:"message,omitempty"`
}

// ConnectionInfo describes the task being dispatched.
type ConnectionInfo struct {
	Name   string          `json:"name"`
	Remote maidfile.Remote `json:"remote"`
	Args   []string        `json:"args"`
	Script []string        `json:"script"`
}

// ConnectionEnvelope is the first frame sent to the worker.
type ConnectionEnvelope struct {
	Info     ConnectionInfo    `json:"info"`
	Maidfile maidfile.Maidfile `json:"maidfile"`
}

// Endpoints holds the resolved worker addresses.
type Endpoints struct {
	Host       string
	Port       int64
	Token      string
	HealthURL  string
	GatewayURL string
}

// NewEndpoints derives the health and gateway URLs from the server declaration.
func NewEndpoints(server maidfile.Server) Endpoints {
	httpScheme := plainHTTPSchemeConstant
	socketScheme := plainSocketSchemeConstant
	if server.Address.TLS {
		httpScheme = secureHTTPSchemeConstant
		socketScheme = secureSocketSchemeConstant
	}
	authority := fmt.Sprintf("%s:%d", server.Address.Host, server.Address.Port)
	return Endpoints{
		Host:       server.Address.Host,
		Port:       server.Address.Port,
		Token:      server.Token,
		HealthURL:  fmt.Sprintf("%s://%s%s", httpScheme, authority, healthPathConstant),
		GatewayURL: fmt.Sprintf("%s://%s%s", socketScheme, authority, gatewayPathConstant),
	}
}
