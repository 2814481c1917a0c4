package moodletest

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/tansive/moodleauth/internal/common/uuid"
)

// RequestIDHeader carries the id the fake assigned to a request.
const RequestIDHeader = "X-Moodletest-Request-ID"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// sendJSON writes msg with status 200, as Moodle does for errors too.
func sendJSON(w http.ResponseWriter, msg any) {
	if raw, ok := msg.(Raw); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, string(raw))
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("unable to marshal json")
		http.Error(w, "unable to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// panicHandler turns a panicking Function into a 500 response.
func panicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Str("panic", fmt.Sprintf("%v", err)).
					Str("stack_trace", string(debug.Stack())).
					Msg("panic occurred")
				http.Error(w, "unable to process request", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger tags each request with an id and logs it at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		logger := log.With().Str("request_id", requestID).Logger()
		ctx := logger.WithContext(r.Context())

		w.Header().Set(RequestIDHeader, requestID)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("wsfunction", r.URL.Query().Get("wsfunction")).
			Msg("incoming request")
		defer func() {
			logger.Debug().Dur("duration", time.Since(start)).Msg("request completed")
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
