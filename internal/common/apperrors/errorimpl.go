package apperrors

import (
	"strings"
)

// appError implements the apperrors.Error interface.
type appError struct {
	msg         string  // primary error message
	base        error   // template error, matched by errors.Is
	causes      []error // attached errors, reachable by errors.Is and errors.As
	statuscode  int
	expandError bool
}

// Error returns the primary message only. Use ErrorAll for the causes.
func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by the attached causes when
// expansion is enabled, otherwise the same as Error.
func (e *appError) ErrorAll() string {
	if !e.expandError || len(e.causes) == 0 {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.causes {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the template and every attached cause to the errors package.
func (e *appError) Unwrap() []error {
	errs := make([]error, 0, len(e.causes)+1)
	if e.base != nil {
		errs = append(errs, e.base)
	}
	for _, err := range e.causes {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *appError) derive(msg string, causes []error) *appError {
	return &appError{
		msg:         msg,
		base:        e,
		causes:      causes,
		statuscode:  e.statuscode,
		expandError: e.expandError,
	}
}

// New derives a fresh error from the current one. Causes are not carried over.
func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

// Msg derives an error with a new message. The current error's causes stay reachable.
func (e *appError) Msg(msg string) Error {
	return e.derive(msg, e.causes)
}

// MsgErr derives an error with a new message and the given causes attached.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append(append([]error{}, e.causes...), errs...))
}

// Err attaches the given causes while keeping the current message.
func (e *appError) Err(errs ...error) Error {
	return e.MsgErr(e.msg, errs...)
}

// SetExpandError returns a copy with an updated expansion flag.
func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

// SetStatusCode returns a copy with an updated status code.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}
