// Package apperrors provides chained sentinel errors for the web-service client.
// Errors form a tree: every error derived from a sentinel still matches that
// sentinel (and all of its ancestors) with errors.Is, and any concrete error
// attached with Err or MsgErr is reachable with errors.As.
package apperrors

// Error defines the interface for application errors. It extends the standard error
// interface with methods for deriving errors from sentinels and attaching causes.
// All derivation methods return a new Error; sentinels are never mutated.
type Error interface {
	error
	Unwrap() []error // the template error followed by attached causes

	New(msg string) Error                  // derives a fresh error using current as template
	Msg(msg string) Error                  // derives an error with a new message that wraps current
	MsgErr(msg string, err ...error) Error // derives an error with a new message and attached causes
	Err(err ...error) Error                // attaches causes, keeping the message
	SetExpandError(bool) Error             // controls whether ErrorAll expands attached causes
	SetStatusCode(int) Error               // sets the status code hosts map to user-facing outcomes
	StatusCode() int                       // returns the current status code
	ErrorAll() string                      // returns the message including attached causes
}
