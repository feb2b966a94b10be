// Package responsewriter records what a handler sent, for the logging,
// metrics and tracing middleware.
package responsewriter

import (
	"net/http"
)

// Recorder wraps an http.ResponseWriter and remembers the final status and
// the body size. Informational (1xx) headers pass through without becoming
// the recorded status.
type Recorder struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

// Wrap returns a Recorder around w. Until the handler writes, Status reports 200.
func Wrap(w http.ResponseWriter) *Recorder {
	if r, ok := w.(*Recorder); ok {
		return r
	}
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *Recorder) WriteHeader(code int) {
	if r.wrote {
		return
	}
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		r.ResponseWriter.WriteHeader(code)
		return
	}
	r.status = code
	r.wrote = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *Recorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing.
func (r *Recorder) Flush() {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status is the final status code sent, or 200 if nothing was written yet.
func (r *Recorder) Status() int { return r.status }

// Bytes is the number of body bytes written.
func (r *Recorder) Bytes() int { return r.bytes }

// Wrote reports whether the header has been sent.
func (r *Recorder) Wrote() bool { return r.wrote }

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
