package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	healthyValueConstant             = "yes"
	defaultHealthTimeoutConstant     = 30 * time.Second
	unreachableMessageConstant       = "Unable to connect to the maid server. Is it up?"
	unauthorizedMessageConstant      = "Unable to connect to the maid server. Is the token correct?"
	healthCheckMessageConstant       = "Checking worker health"
	healthURLFieldNameConstant       = "url"
	healthStatusFieldNameConstant    = "status"
	healthStatusCodeTemplateConstant = "worker responded with status %d"
)

// ErrWorkerUnreachable indicates the health endpoint could not be reached.
var ErrWorkerUnreachable = errors.New(unreachableMessageConstant)

// ErrWorkerRejected indicates the worker answered with an unusable body.
var ErrWorkerRejected = errors.New(unauthorizedMessageConstant)

// HealthCheckError describes a failed health probe.
type HealthCheckError struct {
	URL   string
	Kind  error
	Cause error
}

// Error renders the operator facing message together with the cause.
func (healthCheckError HealthCheckError) Error() string {
	if healthCheckError.Cause == nil {
		return healthCheckError.Kind.Error()
	}
	return fmt.Sprintf("%s (%v)", healthCheckError.Kind.Error(), healthCheckError.Cause)
}

// Unwrap exposes the failure kind and cause.
func (healthCheckError HealthCheckError) Unwrap() []error {
	return []error{healthCheckError.Kind, healthCheckError.Cause}
}

// HealthField is a reported value together with the color it should be shown in.
type HealthField struct {
	Data any    `json:"data"`
	Hue  string `json:"hue"`
}

// Text renders the value for display.
func (field HealthField) Text() string {
	switch typed := field.Data.(type) {
	case []any:
		return fmt.Sprintf("%v", typed)
	default:
		return cast.ToString(typed)
	}
}

// HealthStatus is the runtime section of the health report.
type HealthStatus struct {
	Uptime     HealthField `json:"uptime"`
	Healthy    HealthField `json:"healthy"`
	Containers HealthField `json:"containers"`
}

// HealthReport is the body returned by the worker's health endpoint.
type HealthReport struct {
	Version  HealthField  `json:"version"`
	Platform HealthField  `json:"platform"`
	Engine   HealthField  `json:"engine"`
	Status   HealthStatus `json:"status"`
}

// Healthy reports whether the worker declared itself healthy.
func (report HealthReport) Healthy() bool {
	return cast.ToString(report.Status.Healthy.Data) == healthyValueConstant
}

// HealthClient queries the worker health endpoint.
type HealthClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHealthClient constructs a HealthClient. A zero timeout selects the default.
func NewHealthClient(logger *zap.Logger, timeout time.Duration) *HealthClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultHealthTimeoutConstant
	}
	return &HealthClient{httpClient: resty.New().SetTimeout(timeout), logger: logger}
}

// Close releases idle connections.
func (client *HealthClient) Close() error {
	return client.httpClient.Close()
}

// Check fetches the health report using the bearer token from endpoints.
func (client *HealthClient) Check(executionContext context.Context, endpoints Endpoints) (HealthReport, error) {
	client.logger.Debug(healthCheckMessageConstant, zap.String(healthURLFieldNameConstant, endpoints.HealthURL))

	response, requestError := client.httpClient.R().
		SetContext(executionContext).
		SetAuthToken(endpoints.Token).
		SetResult(&HealthReport{}).
		Get(endpoints.HealthURL)
	if requestError != nil {
		return HealthReport{}, HealthCheckError{URL: endpoints.HealthURL, Kind: ErrWorkerUnreachable, Cause: requestError}
	}
	client.logger.Debug(healthCheckMessageConstant, zap.String(healthURLFieldNameConstant, endpoints.HealthURL), zap.Int(healthStatusFieldNameConstant, response.StatusCode()))

	if response.IsError() {
		return HealthReport{}, HealthCheckError{URL: endpoints.HealthURL, Kind: ErrWorkerRejected, Cause: fmt.Errorf(healthStatusCodeTemplateConstant, response.StatusCode())}
	}
	report, decoded := response.Result().(*HealthReport)
	if !decoded || report == nil {
		return HealthReport{}, HealthCheckError{URL: endpoints.HealthURL, Kind: ErrWorkerRejected}
	}
	return *report, nil
}
