package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// responseWriter captures the status code and size for the access log
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// userCapture lets inner middleware report the authenticated caller back out.
type userCapture struct {
	userID string
}

// Logger writes one access log line per request. Server errors log at
// Error, client errors at Warn.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			capture := &userCapture{}
			r = r.WithContext(withUserCapture(r.Context(), capture))

			next.ServeHTTP(rw, r)

			level := zapcore.InfoLevel
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			case rw.statusCode >= http.StatusBadRequest:
				level = zapcore.WarnLevel
			}

			fields := []zap.Field{
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Int("bytes", rw.bytesWritten),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", clientIP(r)),
				zap.String("user_agent", r.UserAgent()),
			}
			if capture.userID != "" {
				fields = append(fields, zap.String("user_id", capture.userID))
			}

			// query strings are left out; callback urls carry a token
			logger.Check(level, "HTTP request").Write(fields...)
		})
	}
}

type captureKey struct{}

func withUserCapture(ctx context.Context, c *userCapture) context.Context {
	return context.WithValue(ctx, captureKey{}, c)
}

func userCaptureFrom(ctx context.Context) *userCapture {
	c, _ := ctx.Value(captureKey{}).(*userCapture)
	return c
}
