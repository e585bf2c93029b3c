package middleware

import (
	"io"
	"log"
	"net/http"
	"net/url"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const redacted = "REDACTED"

// Logger is chi's request logger writing to out, with the values of the
// named query parameters replaced before the request line is recorded.
// The request passed to the next handler is left untouched.
func Logger(out io.Writer, noColor bool, secretParams ...string) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&redactingFormatter{
		next: &chiMiddleware.DefaultLogFormatter{
			Logger:  log.New(out, "", log.LstdFlags),
			NoColor: noColor,
		},
		params: secretParams,
	})
}

type redactingFormatter struct {
	next   chiMiddleware.LogFormatter
	params []string
}

func (f *redactingFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	return f.next.NewLogEntry(redactQuery(r, f.params))
}

// redactQuery returns r, or a copy of it whose URL and RequestURI no longer
// carry the values of params.
func redactQuery(r *http.Request, params []string) *http.Request {
	if r.URL == nil || r.URL.RawQuery == "" {
		return r
	}
	q, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		// Unparseable queries are dropped rather than logged verbatim.
		q = url.Values{}
	}

	found := err != nil
	for _, p := range params {
		if _, ok := q[p]; ok {
			q.Set(p, redacted)
			found = true
		}
	}
	if !found {
		return r
	}

	cp := r.Clone(r.Context())
	cp.URL.RawQuery = q.Encode()
	cp.RequestURI = cp.URL.RequestURI()
	return cp
}
