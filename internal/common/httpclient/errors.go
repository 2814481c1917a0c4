package httpclient

import (
	"net/http"
	"strings"

	"github.com/tansive/moodleauth/internal/common/apperrors"
	"github.com/tansive/moodleauth/pkg/types"
)

var (
	// ErrWebService is the base error for all web-service client errors.
	ErrWebService apperrors.Error = apperrors.New("web service error").SetStatusCode(http.StatusInternalServerError)

	// ErrTransport is returned for network and I/O failures, including
	// unusable response bodies. Transport errors are retried.
	ErrTransport apperrors.Error = ErrWebService.New("transport failure").SetStatusCode(http.StatusServiceUnavailable)

	// ErrMalformedResponse is returned when the response body cannot be decoded
	// into the expected shape.
	ErrMalformedResponse apperrors.Error = ErrTransport.New("unparsable result").SetStatusCode(http.StatusBadGateway).SetExpandError(true)

	// ErrServerStatus is returned when the service responds with a 5xx status.
	ErrServerStatus apperrors.Error = ErrTransport.New("server error status").SetStatusCode(http.StatusBadGateway)

	// ErrRequestRejected is returned for 4xx statuses. It is not retried.
	ErrRequestRejected apperrors.Error = ErrWebService.New("request rejected").SetStatusCode(http.StatusBadGateway)

	// ErrRemote is matched by every RemoteError.
	ErrRemote apperrors.Error = ErrWebService.New("remote error").SetStatusCode(http.StatusBadGateway)

	// ErrInvalidArgument is returned for caller errors such as an unusable URI.
	ErrInvalidArgument apperrors.Error = ErrWebService.New("invalid argument").SetStatusCode(http.StatusBadRequest)

	// ErrCanceled is returned when the caller's context ends a call.
	ErrCanceled apperrors.Error = ErrWebService.New("request canceled").SetStatusCode(http.StatusRequestTimeout)

	// ErrClientClosed is returned by calls on a closed client.
	ErrClientClosed apperrors.Error = ErrWebService.New("client is closed").SetStatusCode(http.StatusGone)
)

// ErrorEnvelope is the JSON object the service uses to report application
// errors. Any subset of the fields may be present.
type ErrorEnvelope struct {
	Exception types.NullableString `json:"exception"`
	ErrorCode types.NullableString `json:"errorcode"`
	Error     types.NullableString `json:"error"`
	Message   types.NullableString `json:"message"`
}

// Failure returns the envelope when it reports an error, nil otherwise.
// Shapes that embed ErrorEnvelope inherit this and therefore satisfy
// ErrorReporter.
func (e ErrorEnvelope) Failure() *ErrorEnvelope {
	if e.ErrorCode.Valid || e.Exception.Valid {
		return &e
	}
	return nil
}

// ErrorReporter is implemented by result shapes that can carry an error
// envelope in place of their payload.
type ErrorReporter interface {
	Failure() *ErrorEnvelope
}

// RemoteError is an error reported by the service through an ErrorEnvelope.
type RemoteError struct {
	Envelope ErrorEnvelope
}

// Error renders the fields that are present, e.g.
// "Error code: invalidtoken, message: Invalid token - token not found".
func (e *RemoteError) Error() string {
	var parts []string
	add := func(label string, v types.NullableString) {
		if !v.IsNil() {
			parts = append(parts, label+": "+v.Value)
		}
	}
	add("Error code", e.Envelope.ErrorCode)
	add("error", e.Envelope.Error)
	add("message", e.Envelope.Message)
	add("exception", e.Envelope.Exception)
	if len(parts) == 0 {
		return ErrRemote.Error()
	}
	return strings.Join(parts, ", ")
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}

// Code returns the reported error code.
func (e *RemoteError) Code() string { return e.Envelope.ErrorCode.String() }

// Text returns the reported error text.
func (e *RemoteError) Text() string { return e.Envelope.Error.String() }

// Message returns the reported message.
func (e *RemoteError) Message() string { return e.Envelope.Message.String() }

// Exception returns the reported exception class.
func (e *RemoteError) Exception() string { return e.Envelope.Exception.String() }
