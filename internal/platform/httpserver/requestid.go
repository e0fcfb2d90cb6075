package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// Inbound ids longer than this are treated as garbage and replaced.
const maxRequestIDLen = 128

type ctxKeyRequestID struct{}

// RequestIDFromContext returns the request correlation id; empty outside a
// request.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// requestIDMiddleware reuses a caller-supplied X-Request-Id when it looks
// sane, mints a uuid otherwise, and echoes the id on the response so clients
// can quote it when reporting errors.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
