package moodle

import (
	"net/http"

	"github.com/tansive/moodleauth/internal/common/apperrors"
	"github.com/tansive/moodleauth/internal/common/httpclient"
)

// Errors returned by this package. All of them match ErrMoodle with errors.Is.
var (
	ErrMoodle            apperrors.Error = httpclient.ErrWebService
	ErrTransport         apperrors.Error = httpclient.ErrTransport
	ErrMalformedResponse apperrors.Error = httpclient.ErrMalformedResponse
	ErrRequestRejected   apperrors.Error = httpclient.ErrRequestRejected
	ErrRemote            apperrors.Error = httpclient.ErrRemote
	ErrInvalidArgument   apperrors.Error = httpclient.ErrInvalidArgument
	ErrCanceled          apperrors.Error = httpclient.ErrCanceled

	ErrAuthFailed     apperrors.Error = ErrMoodle.New("authentication failed").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidSite    apperrors.Error = ErrInvalidArgument.New("invalid site")
	ErrUserNotFound   apperrors.Error = ErrInvalidArgument.New("no user matches the username")
	ErrAmbiguousUser  apperrors.Error = ErrInvalidArgument.New("more than one user matches the username")
	ErrSessionClosed  apperrors.Error = httpclient.ErrClientClosed.New("session is closed")
	ErrUnknownRelease apperrors.Error = ErrMoodle.New("release version not recognised").SetStatusCode(http.StatusUnprocessableEntity)
)

// RemoteError is an application error reported by the service.
type RemoteError = httpclient.RemoteError

// ErrorEnvelope is the service's error object.
type ErrorEnvelope = httpclient.ErrorEnvelope
