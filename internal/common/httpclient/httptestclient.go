package httpclient

import (
	"net/http"
	"net/http/httptest"
)

// HandlerDoer is a transport that serves requests with an http.Handler.
// It uses httptest.NewRecorder to capture responses without network calls.
type HandlerDoer struct {
	Handler http.Handler
}

// NewHandlerDoer returns a HandlerDoer serving requests with h.
func NewHandlerDoer(h http.Handler) *HandlerDoer {
	return &HandlerDoer{Handler: h}
}

// Do serves req with the handler and returns the recorded response.
func (d *HandlerDoer) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rr := httptest.NewRecorder()
	d.Handler.ServeHTTP(rr, req)
	return rr.Result(), nil
}

// HandlerTransport returns a TransportFactory that serves every request with h.
func HandlerTransport(h http.Handler) TransportFactory {
	return func() Doer {
		return NewHandlerDoer(h)
	}
}
