// Package mediasync keeps the cached VOD and clip lists fresh.
package mediasync

import (
	"context"
	"errors"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/repository"
	"github.com/sasagram/streamlog/internal/twitch"
)

var tracer = otel.Tracer("github.com/sasagram/streamlog/internal/mediasync")

type Upstream interface {
	Videos(ctx context.Context, userID string, first int, opts ...twitch.RequestOption) (*twitch.VideoListing, error)
	Clips(ctx context.Context, userID string, first int) ([]domain.Clip, error)
}

type Status string

const (
	StatusOK     Status = "ok"
	StatusStale  Status = "stale"
	StatusFailed Status = "failed"
)

type Snapshot struct {
	Vods         []domain.Vod  `json:"vods"`
	Clips        []domain.Clip `json:"clips"`
	LastSyncedAt *time.Time    `json:"last_synced_at"`
	IsFresh      bool          `json:"is_fresh"`
}

func (s Snapshot) empty() bool {
	return len(s.Vods) == 0 || len(s.Clips) == 0
}

// Reasons are fixed so upstream error text, which may carry URLs or
// credentials, only ever reaches the logs.
const (
	ReasonCacheUnavailable = "media cache unavailable"
	ReasonFetchFailed      = "media could not be fetched"
	ReasonSyncRunning      = "media refresh already in progress"
	ReasonSyncFailed       = "media refresh failed"
)

// Result is what Load serves: fresh data, stale data with the reason it
// could not be refreshed, or nothing at all.
type Result struct {
	Status   Status
	Snapshot Snapshot
	Reason   string
}

type Syncer struct {
	logger   *zap.Logger
	statsd   statsd.ClientInterface
	media    domain.MediaRepository
	state    domain.CacheStateRepository
	upstream Upstream
	lease    Lease

	ttl   time.Duration
	limit int
	now   func() time.Time
}

type Option func(*Syncer)

func WithTTL(ttl time.Duration) Option {
	return func(s *Syncer) { s.ttl = ttl }
}

func WithLease(lease Lease) Option {
	return func(s *Syncer) { s.lease = lease }
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func NewSyncer(logger *zap.Logger, statsd statsd.ClientInterface, media domain.MediaRepository, state domain.CacheStateRepository, upstream Upstream, opts ...Option) *Syncer {
	s := &Syncer{
		logger:   logger,
		statsd:   statsd,
		media:    media,
		state:    state,
		upstream: upstream,
		lease:    NoLease{},
		ttl:      domain.MediaCacheTTL,
		limit:    domain.MediaListLimit,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Cached reads the stored lists and decides freshness from the marker row.
func (s *Syncer) Cached(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	vods, err := s.media.ListVods(ctx, s.limit)
	if err != nil {
		return snap, err
	}
	clips, err := s.media.ListClips(ctx, s.limit)
	if err != nil {
		return snap, err
	}
	snap.Vods, snap.Clips = vods, clips

	cs, err := s.state.Get(ctx, domain.MediaCacheKey)
	if errors.Is(err, domain.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return snap, err
	}

	syncedAt, err := time.Parse(time.RFC3339Nano, cs.ValueText)
	if err != nil {
		return snap, nil
	}

	snap.LastSyncedAt = &syncedAt
	snap.IsFresh = s.now().Sub(syncedAt) < s.ttl

	return snap, nil
}

func (s *Syncer) fetch(ctx context.Context, userID string) ([]domain.Vod, []domain.Clip, error) {
	var (
		vods  []domain.Vod
		clips []domain.Clip
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vl, err := s.upstream.Videos(gctx, userID, s.limit)
		if err != nil {
			return &UpstreamFetchError{Resource: "vods", Err: err}
		}
		vods = vl.Vods
		return nil
	})
	g.Go(func() error {
		cs, err := s.upstream.Clips(gctx, userID, s.limit)
		if err != nil {
			return &UpstreamFetchError{Resource: "clips", Err: err}
		}
		clips = cs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vods, clips, nil
}

// Sync fetches both lists and stores them with the freshness marker in one
// transaction. Nothing is written unless both fetches succeed.
func (s *Syncer) Sync(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "mediasync.Sync")
	defer span.End()
	span.SetAttributes(attribute.String("twitch.user_id", userID))

	start := s.now()

	vods, clips, err := s.fetch(ctx, userID)
	if err == nil {
		err = s.media.ReplaceSnapshot(ctx, vods, clips, s.now())
	}

	tags := []string{"outcome:ok"}
	if err != nil {
		tags = []string{"outcome:error"}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	_ = s.statsd.Incr("mediasync.sync", tags, 1)
	_ = s.statsd.Histogram("mediasync.sync.latency", float64(s.now().Sub(start).Milliseconds()), tags, 1)

	return err
}

// Refresh runs Sync under the lease. ErrLeaseHeld means someone else is on it.
func (s *Syncer) Refresh(ctx context.Context, userID string) error {
	release, ok, err := s.lease.TryAcquire(ctx, LeaseKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLeaseHeld
	}
	defer release()

	return s.Sync(ctx, userID)
}

func (s *Syncer) logFailure(msg string, err error) {
	if repository.IsConnectivityError(err) {
		s.logger.Warn(msg, zap.Error(err))
		return
	}
	s.logger.Error(msg, zap.Error(err))
}

// Load serves the cached lists, refreshing them first when they are stale or
// incomplete. Failures never escape; they show up as the result's status.
func (s *Syncer) Load(ctx context.Context, userID string) Result {
	snap, err := s.Cached(ctx)
	if err != nil {
		s.logFailure("failed to read media cache", err)

		vods, clips, ferr := s.fetch(ctx, userID)
		if ferr != nil {
			s.logFailure("failed to fetch media", ferr)
			return Result{Status: StatusFailed, Reason: ReasonFetchFailed}
		}
		return Result{
			Status:   StatusStale,
			Snapshot: Snapshot{Vods: vods, Clips: clips},
			Reason:   ReasonCacheUnavailable,
		}
	}

	if snap.IsFresh && !snap.empty() {
		return Result{Status: StatusOK, Snapshot: snap}
	}

	if err := s.Refresh(ctx, userID); err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			s.logger.Debug("media sync already running, serving cache")
			return degraded(snap, ReasonSyncRunning)
		}
		s.logFailure("failed to sync media", err)
		return degraded(snap, ReasonSyncFailed)
	}

	fresh, err := s.Cached(ctx)
	if err != nil {
		s.logFailure("failed to reread media cache", err)
		return degraded(snap, ReasonCacheUnavailable)
	}

	return Result{Status: StatusOK, Snapshot: fresh}
}

func degraded(snap Snapshot, reason string) Result {
	if len(snap.Vods) == 0 && len(snap.Clips) == 0 && snap.LastSyncedAt == nil {
		return Result{Status: StatusFailed, Snapshot: snap, Reason: reason}
	}
	return Result{Status: StatusStale, Snapshot: snap, Reason: reason}
}
