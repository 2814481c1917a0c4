package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelopeError struct {
	code string
}

func (e *envelopeError) Error() string {
	return "Error code: " + e.code
}

func TestError(t *testing.T) {
	t.Run("derived errors match their ancestors", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrSecondLevel := ErrFirstLevel.New("second level")
		assert.ErrorIs(t, ErrSecondLevel, ErrBaseErr)
		assert.ErrorIs(t, ErrSecondLevel, ErrFirstLevel)
		assert.NotErrorIs(t, ErrFirstLevel, ErrSecondLevel)
	})

	t.Run("attached causes are reachable", func(t *testing.T) {
		ErrTransport := New("transport failure")
		ErrAnotherErr := New("another error")
		cause := errors.New("connection reset by peer")

		err := ErrTransport.Err(cause, ErrAnotherErr.Msg("another error msg"))
		assert.Equal(t, "transport failure", err.Error())
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrAnotherErr)

		err = ErrTransport.MsgErr("request failed", fmt.Errorf("dial: %w", cause))
		assert.Equal(t, "request failed", err.Error())
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, cause)

		// Msg keeps causes attached earlier in the chain.
		err = err.Msg("final attempt failed")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("errors.As finds concrete causes", func(t *testing.T) {
		ErrRemote := New("remote error")
		err := ErrRemote.Err(&envelopeError{code: "invalidtoken"})

		var target *envelopeError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, "invalidtoken", target.code)
	})

	t.Run("status codes are inherited", func(t *testing.T) {
		ErrBase := New("base").SetStatusCode(http.StatusServiceUnavailable)
		assert.Equal(t, http.StatusServiceUnavailable, ErrBase.StatusCode())
		assert.Equal(t, http.StatusServiceUnavailable, ErrBase.New("child").StatusCode())
		assert.Equal(t, http.StatusServiceUnavailable, ErrBase.Msg("msg").StatusCode())

		ErrChild := ErrBase.New("child").SetStatusCode(http.StatusUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, ErrChild.StatusCode())
		assert.ErrorIs(t, ErrChild, ErrBase)
	})

	t.Run("ErrorAll expands causes on request", func(t *testing.T) {
		ErrParse := New("unparsable result").SetExpandError(true)
		err := ErrParse.Err(errors.New("unexpected end of JSON input"))
		assert.Equal(t, "unparsable result", err.Error())
		assert.Equal(t, "unparsable result: unexpected end of JSON input", err.ErrorAll())

		quiet := New("quiet").Err(errors.New("hidden"))
		assert.Equal(t, "quiet", quiet.ErrorAll())
	})
}
