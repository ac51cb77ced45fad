package middleware

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/dealflow/pkg/composables"
	"github.com/iota-uz/dealflow/pkg/httpapi"
	"github.com/iota-uz/dealflow/pkg/repo"
)

// Provide lets a storage backend prepare every request context, e.g. by
// attaching its connection pool.
func Provide(attach func(context.Context) context.Context) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(attach(r.Context())))
		})
	}
}

// bufferedWriter holds the response until the transaction outcome is known.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// WithTransaction runs the handler in one transaction. It commits when the
// handler answers below 400 and rolls back otherwise; the response is sent
// only after that.
func WithTransaction(t repo.Transactor) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := composables.UseLogger(r.Context())
			txCtx, tx, err := t.Begin(r.Context())
			if err != nil {
				logger.WithError(err).Error("failed to begin transaction")
				_ = httpapi.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
				return
			}
			defer func() {
				if err := tx.Rollback(context.WithoutCancel(r.Context())); err != nil {
					logger.WithError(err).Debug("rollback after request")
				}
			}()

			buf := &bufferedWriter{header: w.Header()}
			next.ServeHTTP(buf, r.WithContext(txCtx))
			if buf.status == 0 {
				buf.status = http.StatusOK
			}

			if buf.status < http.StatusBadRequest {
				if err := tx.Commit(r.Context()); err != nil {
					logger.WithError(err).Error("failed to commit transaction")
					w.Header().Del("Content-Length")
					_ = httpapi.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
					return
				}
			}
			w.WriteHeader(buf.status)
			_, _ = w.Write(buf.body.Bytes())
		})
	}
}
