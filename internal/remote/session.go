package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tyemirov/maid/internal/maidfile"
)

const (
	authorizationHeaderConstant     = "Authorization"
	bearerPrefixConstant            = "Bearer "
	closeReasonConstant             = "finished task successfully"
	finishedMessageConstant         = "finished task successfully"
	removedArchiveMessageConstant   = "removed temporary archive"
	connectingTemplateConstant      = "connecting to %s:%d"
	healthyNoticeConstant           = "server reports healthy"
	unhealthyWarningConstant        = "failed to connect"
	finishedHueConstant             = "bright green"
	removedHueConstant              = "bright magenta"
	controlWriteTimeoutConstant     = time.Second
	dialRetryDelayConstant          = 500 * time.Millisecond
	dialAttemptMessageConstant      = "Dialing worker gateway"
	dialFailedMessageConstant       = "Gateway dial attempt failed"
	gatewayConnectedMessageConstant = "Gateway connected"
	sendingEnvelopeMessageConstant  = "sending information"
	ignoredFrameMessageConstant     = "Ignoring undecodable event"
	binaryRequestMessageConstant    = "Worker requested push archive"
	resultArchiveMessageConstant    = "Received result archive"
	removeArchiveFailedConstant     = "Unable to remove temporary archive"
	closeFailedMessageConstant      = "Unable to close socket"
	gatewayURLFieldNameConstant     = "url"
	attemptFieldNameConstant        = "attempt"
	responseCodeFieldNameConstant   = "response_code"
	taskFieldNameConstant           = "task"
	archiveSizeFieldNameConstant    = "bytes"
)

// ErrServerNotConfigured indicates the descriptor declares no worker.
var ErrServerNotConfigured = errors.New("remote server is not configured")

// ConnectionError reports that the websocket handshake failed on every attempt.
type ConnectionError struct {
	URL      string
	Attempts int
	Cause    error
}

// Error describes the failed handshake.
func (connectionError ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s after %d attempts: %v", connectionError.URL, connectionError.Attempts, connectionError.Cause)
}

// Unwrap exposes the last dial failure.
func (connectionError ConnectionError) Unwrap() error {
	return connectionError.Cause
}

// StreamError reports that the event stream ended with a transport failure.
type StreamError struct {
	Cause error
}

// Error describes the interrupted stream.
func (streamError StreamError) Error() string {
	return fmt.Sprintf("remote session interrupted: %v", streamError.Cause)
}

// Unwrap exposes the transport failure.
func (streamError StreamError) Unwrap() error {
	return streamError.Cause
}

// HealthChecker probes the worker before a session starts.
type HealthChecker interface {
	Check(executionContext context.Context, endpoints Endpoints) (HealthReport, error)
}

// SessionRequest describes one remote task dispatch.
type SessionRequest struct {
	TaskName      string
	Arguments     []string
	Script        []string
	Remote        maidfile.Remote
	Maidfile      maidfile.Maidfile
	Server        maidfile.Server
	BaseDirectory string
}

// SessionResult summarizes a finished session.
type SessionResult struct {
	MessagesLogged    int
	ArchivesExtracted int
	ArchivesSent      int
}

// Dispatcher runs remote sessions against the worker gateway.
type Dispatcher struct {
	healthChecker HealthChecker
	archives      *ArchiveManager
	printer       *EventPrinter
	dialer        *websocket.Dialer
	fileSystem    afero.Fs
	logger        *zap.Logger
}

// DispatcherDependencies wires the collaborators of a Dispatcher.
type DispatcherDependencies struct {
	HealthChecker HealthChecker
	Archives      *ArchiveManager
	Printer       *EventPrinter
	Dialer        *websocket.Dialer
	FileSystem    afero.Fs
	Logger        *zap.Logger
}

// NewDispatcher constructs a Dispatcher, filling unset dependencies with defaults.
func NewDispatcher(dependencies DispatcherDependencies) *Dispatcher {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	healthChecker := dependencies.HealthChecker
	if healthChecker == nil {
		healthChecker = NewHealthClient(logger, 0)
	}
	printer := dependencies.Printer
	if printer == nil {
		printer = NewEventPrinter(nil, false)
	}
	dialer := dependencies.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 45 * time.Second}
	}
	archives := dependencies.Archives
	if archives == nil {
		archives = NewArchiveManager(fileSystem, "", logger)
	}
	return &Dispatcher{
		healthChecker: healthChecker,
		archives:      archives,
		printer:       printer,
		dialer:        dialer,
		fileSystem:    fileSystem,
		logger:        logger,
	}
}

// Health probes the worker declared in server.
func (dispatcher *Dispatcher) Health(executionContext context.Context, server maidfile.Server) (HealthReport, error) {
	return dispatcher.healthChecker.Check(executionContext, NewEndpoints(server))
}

// Dispatch checks worker health, opens the gateway socket, announces the task,
// and processes worker events until the worker reports completion.
func (dispatcher *Dispatcher) Dispatch(executionContext context.Context, request SessionRequest) (SessionResult, error) {
	endpoints := NewEndpoints(request.Server)
	report, healthError := dispatcher.healthChecker.Check(executionContext, endpoints)
	if healthError != nil {
		return SessionResult{}, healthError
	}

	dispatcher.printer.Printf(LevelInfo, connectingTemplateConstant, endpoints.Host, endpoints.Port)
	if report.Healthy() {
		dispatcher.printer.Print(LevelNotice, healthyNoticeConstant)
	} else {
		dispatcher.printer.Print(LevelWarning, unhealthyWarningConstant)
	}

	connection, connectError := dispatcher.connect(executionContext, endpoints)
	if connectError != nil {
		return SessionResult{}, connectError
	}
	defer connection.Close()

	stopWatching := dispatcher.watchContext(executionContext, connection)
	defer stopWatching()

	pushArchivePath, archiveError := dispatcher.archives.CreatePushArchive(request.Remote.Push, request.BaseDirectory)
	if archiveError != nil {
		return SessionResult{}, archiveError
	}

	envelope := ConnectionEnvelope{
		Info: ConnectionInfo{
			Name:   request.TaskName,
			Remote: request.Remote,
			Args:   request.Arguments,
			Script: request.Script,
		},
		Maidfile: request.Maidfile,
	}
	dispatcher.logger.Debug(sendingEnvelopeMessageConstant, zap.String(taskFieldNameConstant, request.TaskName))
	if writeError := connection.WriteJSON(envelope); writeError != nil {
		dispatcher.removeArchive(pushArchivePath)
		return SessionResult{}, StreamError{Cause: writeError}
	}

	result, streamError := dispatcher.processEvents(connection, pushArchivePath, request.BaseDirectory)

	dispatcher.removeArchive(pushArchivePath)
	if streamError != nil {
		return result, streamError
	}

	dispatcher.printer.Line("\n" + dispatcher.printer.Hue(finishedHueConstant, finishedMessageConstant))
	dispatcher.printer.Line(dispatcher.printer.Hue(removedHueConstant, removedArchiveMessageConstant))

	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReasonConstant)
	if closeError := connection.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(controlWriteTimeoutConstant)); closeError != nil {
		dispatcher.logger.Error(closeFailedMessageConstant, zap.Error(closeError))
	}
	return result, nil
}

func (dispatcher *Dispatcher) connect(executionContext context.Context, endpoints Endpoints) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set(authorizationHeaderConstant, bearerPrefixConstant+endpoints.Token)

	var lastError error
	for attempt := 1; attempt <= ConnectionAttempts; attempt++ {
		dispatcher.logger.Debug(dialAttemptMessageConstant, zap.String(gatewayURLFieldNameConstant, endpoints.GatewayURL), zap.Int(attemptFieldNameConstant, attempt))
		connection, response, dialError := dispatcher.dialer.DialContext(executionContext, endpoints.GatewayURL, header)
		if dialError == nil {
			if response != nil {
				dispatcher.logger.Debug(gatewayConnectedMessageConstant, zap.Int(responseCodeFieldNameConstant, response.StatusCode))
			}
			connection.SetReadLimit(MaximumFrameSize)
			return connection, nil
		}
		lastError = dialError
		dispatcher.logger.Debug(dialFailedMessageConstant, zap.Int(attemptFieldNameConstant, attempt), zap.Error(dialError))
		if executionContext.Err() != nil || attempt == ConnectionAttempts {
			break
		}
		select {
		case <-executionContext.Done():
		case <-time.After(dialRetryDelayConstant):
		}
	}
	return nil, ConnectionError{URL: endpoints.GatewayURL, Attempts: ConnectionAttempts, Cause: lastError}
}

func (dispatcher *Dispatcher) processEvents(connection *websocket.Conn, pushArchivePath string, baseDirectory string) (SessionResult, error) {
	var result SessionResult
	for {
		messageType, payload, readError := connection.ReadMessage()
		if readError != nil {
			dispatcher.printer.Print(LevelFatal, readError.Error())
			return result, StreamError{Cause: readError}
		}

		switch messageType {
		case websocket.TextMessage:
			var event Event
			if decodeError := json.Unmarshal(payload, &event); decodeError != nil {
				dispatcher.logger.Debug(ignoredFrameMessageConstant, zap.Error(decodeError))
				continue
			}
			switch event.Kind {
			case KindDone:
				return result, nil
			case KindMessage:
				dispatcher.printer.PrintEvent(event)
				result.MessagesLogged++
			case KindBinary:
				dispatcher.logger.Debug(binaryRequestMessageConstant)
				contents, readArchiveError := afero.ReadFile(dispatcher.fileSystem, pushArchivePath)
				if readArchiveError != nil {
					return result, StreamError{Cause: readArchiveError}
				}
				if writeError := connection.WriteMessage(websocket.BinaryMessage, contents); writeError != nil {
					return result, StreamError{Cause: writeError}
				}
				result.ArchivesSent++
			}
		case websocket.BinaryMessage:
			dispatcher.logger.Debug(resultArchiveMessageConstant, zap.Int(archiveSizeFieldNameConstant, len(payload)))
			resultArchivePath, storeError := dispatcher.archives.StoreResultArchive(payload)
			if storeError != nil {
				return result, storeError
			}
			if extractError := dispatcher.archives.Extract(resultArchivePath, baseDirectory); extractError != nil {
				dispatcher.removeArchive(resultArchivePath)
				return result, extractError
			}
			dispatcher.removeArchive(resultArchivePath)
			result.ArchivesExtracted++
		}
	}
}

func (dispatcher *Dispatcher) removeArchive(archivePath string) {
	if removeError := dispatcher.archives.Remove(archivePath); removeError != nil {
		dispatcher.logger.Error(removeArchiveFailedConstant, zap.Error(removeError))
	}
}

func (dispatcher *Dispatcher) watchContext(executionContext context.Context, connection *websocket.Conn) func() {
	finished := make(chan struct{})
	go func() {
		select {
		case <-executionContext.Done():
			connection.Close()
		case <-finished:
		}
	}()
	return func() { close(finished) }
}
