package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/bugsnag/bugsnag-go/v2"
	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/kick"
	"github.com/sasagram/streamlog/internal/mediasync"
	"github.com/sasagram/streamlog/internal/twitch"
)

const (
	errorHeader     = "X-Streamlog-Error"
	requestIDHeader = "X-Request-Id"
)

// Twitch is the slice of the Helix client the handlers need.
type Twitch interface {
	UserByLogin(ctx context.Context, login string) (*twitch.User, error)
	UsersByLogin(ctx context.Context, logins []string) ([]*twitch.User, error)
	StreamsByLogin(ctx context.Context, logins []string) ([]*twitch.Stream, error)
	LiveStream(ctx context.Context, login string) (*twitch.Stream, error)
	FollowersCount(ctx context.Context, userID string) (int64, error)
	Schedule(ctx context.Context, userID string, start time.Time) (*twitch.Schedule, error)
	Games(ctx context.Context, ids []string) (map[string]string, error)
}

type Kick interface {
	Creator(ctx context.Context, slug string) (*kick.Creator, error)
}

type MediaLoader interface {
	Load(ctx context.Context, userID string) mediasync.Result
}

type api struct {
	logger *zap.Logger
	statsd statsd.ClientInterface
	twitch Twitch
	kick   Kick
	media  MediaLoader

	streamRepo domain.StreamRepository

	username        string
	watchAlsoTwitch []string
	watchAlsoKick   []string
	location        *time.Location
	now             func() time.Time
}

func NewAPI(logger *zap.Logger, statsd statsd.ClientInterface, cfg *config.Config, tc Twitch, kc Kick, media MediaLoader, streamRepo domain.StreamRepository) *api {
	return &api{
		logger: logger,
		statsd: statsd,
		twitch: tc,
		kick:   kc,
		media:  media,

		streamRepo: streamRepo,

		username:        cfg.Twitch.Username,
		watchAlsoTwitch: cfg.WatchAlsoTwitch,
		watchAlsoKick:   cfg.WatchAlsoKick,
		location:        cfg.TimelineLocation,
		now:             time.Now,
	}
}

func (a *api) Server(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           bugsnag.Handler(otelhttp.NewHandler(a.Routes(), "streamlog-api")),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *api) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.healthCheckHandler).Methods("GET")

	r.HandleFunc("/streams", a.listStreamsHandler).Methods("GET")
	r.HandleFunc("/streams", a.upsertStreamsHandler).Methods("POST")

	r.HandleFunc("/live-aggregate", a.liveAggregateHandler).Methods("GET")
	r.HandleFunc("/watch-also", a.watchAlsoHandler).Methods("GET")
	r.HandleFunc("/schedule", a.scheduleHandler).Methods("GET")
	r.HandleFunc("/timeline", a.timelineHandler).Methods("GET")

	r.Use(a.loggingMiddleware)

	return r
}

type LoggingResponseWriter struct {
	w          http.ResponseWriter
	statusCode int
	bytes      int
}

func (lrw *LoggingResponseWriter) Header() http.Header {
	return lrw.w.Header()
}

func (lrw *LoggingResponseWriter) Write(bb []byte) (int, error) {
	if lrw.statusCode == 0 {
		lrw.statusCode = http.StatusOK
	}
	wb, err := lrw.w.Write(bb)
	lrw.bytes += wb
	return wb, err
}

func (lrw *LoggingResponseWriter) WriteHeader(statusCode int) {
	lrw.w.WriteHeader(statusCode)
	lrw.statusCode = statusCode
}

func (a *api) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging health checks
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			if id, err := uuid.NewV4(); err == nil {
				requestID = id.String()
			}
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		lrw := &LoggingResponseWriter{w: w}
		next.ServeHTTP(lrw, r)

		remoteAddr := r.Header.Get("X-Forwarded-For")
		if remoteAddr == "" {
			if ip, _, err := net.SplitHostPort(r.RemoteAddr); err != nil {
				remoteAddr = "unknown"
			} else {
				remoteAddr = ip
			}
		}

		fields := []zap.Field{
			zap.Int64("duration", time.Since(start).Milliseconds()),
			zap.String("method", r.Method),
			zap.String("remote#addr", remoteAddr),
			zap.Int("response#bytes", lrw.bytes),
			zap.Int("status", lrw.statusCode),
			zap.String("uri", r.RequestURI),
			zap.String("request#id", requestID),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			fields = append(fields, zap.String("trace#id", sc.TraceID().String()))
		}

		tags := []string{fmt.Sprintf("status:%d", lrw.statusCode)}
		_ = a.statsd.Incr("api.requests", tags, 1)

		if lrw.statusCode < 400 {
			a.logger.Info("request", fields...)
		} else {
			err := lrw.Header().Get(errorHeader)
			a.logger.Error(err, fields...)
		}
	})
}
