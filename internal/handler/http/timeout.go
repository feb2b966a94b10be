package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"food-diary/internal/handler/http/respond"
)

// Timeout returns middleware that answers 504 when the handler has not
// finished within d. The handler's context is canceled so uploads and
// queries stop early, and anything it writes afterwards is discarded.
//
// Headers set by the handler are buffered and only reach the client with
// its own response, so the 504 carries just the headers of outer middleware.
// A panic in the handler is re-raised here for Recover to see.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			dw := &deadlineWriter{w: w, h: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				if dw.expire() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
					respond.JSON(w, http.StatusGatewayTimeout, respond.ErrorBody{Error: "request timeout"})
				}
			}
		})
	}
}

// deadlineWriter serialises the handler's writes against the timeout.
type deadlineWriter struct {
	w  http.ResponseWriter
	h  http.Header
	mu sync.Mutex

	wroteHeader bool
	expired     bool
}

func (dw *deadlineWriter) Header() http.Header { return dw.h }

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.writeHeaderLocked(code)
}

func (dw *deadlineWriter) writeHeaderLocked(code int) {
	if dw.expired || dw.wroteHeader {
		return
	}
	dst := dw.w.Header()
	for k, v := range dw.h {
		dst[k] = v
	}
	dw.wroteHeader = true
	dw.w.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !dw.wroteHeader {
		dw.writeHeaderLocked(http.StatusOK)
	}
	return dw.w.Write(b)
}

// expire stops further writes. It reports whether the timeout may still
// write its own response, that is whether the handler had not started one.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.wroteHeader
}
