package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	ErrNoProviders      = errors.New("no available services")
	ErrEmptyLocation    = errors.New("location input cannot be empty")
	ErrTooManyLocations = errors.New("maximum 10 locations allowed")
	ErrLocationTooShort = errors.New("location names must be at least 2 characters")
)

var (
	ErrInvalidRadius      = errors.New("radius must be positive")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidType        = errors.New("invalid opportunity type")
	ErrInvalidLimit       = errors.New("limit must be non-negative")
)

var (
	ErrUnauthorized   = errors.New("invalid API key")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrServerError    = errors.New("provider server error")
	ErrUnavailable    = errors.New("provider unavailable")
)

var (
	ErrGeocodingFailed     = errors.New("geocoding failed")
	ErrAllGeocodingFailed  = errors.New("all locations failed to geocode")
	ErrOpportunityNotFound = errors.New("opportunity not found")

	ErrProviderConfigNotFound = errors.New("provider config not found")
)

// ErrorType - классификация ошибок поиска по источникам
type ErrorType string

const (
	ErrorNetwork        ErrorType = "network"
	ErrorTimeout        ErrorType = "timeout"
	ErrorRateLimit      ErrorType = "rate_limit"
	ErrorAuthentication ErrorType = "authentication"
	ErrorServer         ErrorType = "server_error"
	ErrorValidation     ErrorType = "validation_error"
	ErrorGeocoding      ErrorType = "geocoding_error"
)

// Retryable сообщает, имеет ли смысл повторять запрос при такой ошибке
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorNetwork, ErrorTimeout, ErrorRateLimit, ErrorServer:
		return true
	}
	return false
}

// SearchError - ошибка одного источника в рамках одного поиска.
// После создания не мутируется.
type SearchError struct {
	Source     string        `json:"source"`
	Type       ErrorType     `json:"type"`
	Message    string        `json:"message"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Type, e.Message)
}

func NewSearchError(source string, t ErrorType, message string) *SearchError {
	return &SearchError{
		Source:    source,
		Type:      t,
		Message:   message,
		Retryable: t.Retryable(),
	}
}

// Classify превращает произвольную ошибку в SearchError.
// Сентинелы провайдеров и контекстные ошибки мапятся на свой тип,
// всё остальное считаем сетевой проблемой (retryable).
func Classify(source string, err error) *SearchError {
	var se *SearchError
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return NewSearchError(source, ErrorAuthentication, err.Error())
	case errors.Is(err, ErrRateLimited):
		return NewSearchError(source, ErrorRateLimit, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return NewSearchError(source, ErrorValidation, err.Error())
	case errors.Is(err, ErrServerError):
		return NewSearchError(source, ErrorServer, err.Error())
	case errors.Is(err, ErrGeocodingFailed), errors.Is(err, ErrAllGeocodingFailed):
		return NewSearchError(source, ErrorGeocoding, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return NewSearchError(source, ErrorTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		return NewSearchError(source, ErrorTimeout, "request canceled")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewSearchError(source, ErrorTimeout, err.Error())
		}
		return NewSearchError(source, ErrorNetwork, err.Error())
	}

	return NewSearchError(source, ErrorNetwork, err.Error())
}
