package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/matka-backoffice/internal/errors"
)

// ErrorKind classifies a non-2xx response
type ErrorKind int

const (
	KindClient ErrorKind = iota
	// KindAuth means the session is no longer valid
	KindAuth
	// KindValidation is a form-level 422 that should be shown to the operator
	KindValidation
	KindNotFound
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "client"
	}
}

// APIError is the structured form of an HTTP error response
type APIError struct {
	Status  int                 `json:"status"`
	Kind    ErrorKind           `json:"-"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// FieldErrors flattens validation messages, one per line
func (e *APIError) FieldErrors() string {
	var lines []string
	for field, msgs := range e.Fields {
		for _, m := range msgs {
			lines = append(lines, field+": "+m)
		}
	}
	return strings.Join(lines, "\n")
}

// Response is what Client.Do returns for every HTTP exchange, successful or not
type Response struct {
	Status int
	Header http.Header
	Data   json.RawMessage
	Err    *APIError
}

func (r *Response) OK() bool {
	return r != nil && r.Err == nil
}

// Decode unmarshals the payload of a successful response
func (r *Response) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("[Response.Decode] %w", err)
	}
	return nil
}

// Message returns the backend's "message" field for toast display
func (r *Response) Message() string {
	if r.Err != nil {
		return r.Err.Message
	}
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(r.Data, &body)
	return body.Message
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}
	apiErr.Message = payload.Message
	if apiErr.Message == "" {
		apiErr.Message = payload.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	if len(payload.Errors) > 0 {
		fields := map[string][]string{}
		if err := json.Unmarshal(payload.Errors, &fields); err == nil && len(fields) > 0 {
			apiErr.Fields = fields
		}
	}
	return apiErr
}

// IsAuthFailure reports whether err is an APIError that invalidated the session
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsValidation reports whether err is a form validation failure
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindValidation
}

// IsNotFound reports whether err is a 404 APIError
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}

// IsTransport reports whether err is a network-level failure
func IsTransport(err error) bool {
	return errors.Is(err, errors.ErrTransport)
}
