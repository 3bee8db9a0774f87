package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/web/response"
)

// Recovery turns a panic into a 500 response. A fatal record condition
// raised under the panic policy is logged with its operation.
func Recovery(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				fields := []zap.Field{
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Stack("stack"),
				}
				if fe, ok := rec.(*fault.Error); ok {
					fields = append(fields, zap.String("op", fe.Op), zap.Error(fe.Err))
				} else {
					fields = append(fields, zap.String("panic", fmt.Sprint(rec)))
				}
				logger.Error("panic recovered", fields...)

				response.RenderError(w, http.StatusInternalServerError, fmt.Errorf("an unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
