package engine

import (
	"context"
	"log/slog"
	"time"

	"otmarket/internal/domain"
	"otmarket/internal/infra"

	"github.com/google/uuid"
)

// ExpiredOfferSource selects offers created at or before a cutoff.
type ExpiredOfferSource interface {
	ExpiredOffers(ctx context.Context, cutoff int64) ([]domain.ActiveOffer, error)
}

// Sweeper periodically settles expired offers.
type Sweeper struct {
	source     ExpiredOfferSource
	tasks      domain.TaskRunner
	scheduler  domain.Scheduler
	settlement *Settlement
	metrics    *infra.Metrics

	duration time.Duration
	interval time.Duration
	now      func() time.Time

	ctx context.Context
}

// NewSweeper creates a sweeper. duration is the offer lifetime; interval is
// the pause between sweeps, and a non-positive interval disables re-arming.
func NewSweeper(source ExpiredOfferSource, tasks domain.TaskRunner, scheduler domain.Scheduler,
	settlement *Settlement, metrics *infra.Metrics, duration, interval time.Duration) *Sweeper {
	return &Sweeper{
		source:     source,
		tasks:      tasks,
		scheduler:  scheduler,
		settlement: settlement,
		metrics:    metrics,
		duration:   duration,
		interval:   interval,
		now:        time.Now,
		ctx:        context.Background(),
	}
}

// Start schedules the first sweep right away. ctx is handed to settlement.
func (s *Sweeper) Start(ctx context.Context) {
	s.ctx = ctx
	s.scheduler.ScheduleOnce(0, s.Check)
}

// Check runs one sweep and re-arms the timer. The next sweep is scheduled
// without waiting for this one's query, so sweeps may overlap; the archive
// makes a second settle of the same offer a no-op.
func (s *Sweeper) Check() {
	sweepID := uuid.NewString()
	started := s.now()
	cutoff := started.Add(-s.duration).Unix()

	var offers []domain.ActiveOffer
	s.tasks.AddTask(
		func(ctx context.Context) error {
			var err error
			offers, err = s.source.ExpiredOffers(ctx, cutoff)
			return err
		},
		func(err error) {
			if err != nil {
				s.queryFailed(sweepID, err)
				return
			}
			s.settlement.ProcessExpired(s.ctx, offers)
			s.metrics.RecordSweep(s.now().Sub(started))
			if len(offers) > 0 {
				slog.Info("Expired offers settled",
					slog.String("sweep_id", sweepID),
					slog.Int("count", len(offers)),
					slog.Int64("cutoff", cutoff))
			}
		},
	)

	if s.interval > 0 {
		s.scheduler.ScheduleOnce(s.interval, s.Check)
	}
}

// queryFailed reports a failed expiry query. Retriable failures are picked up
// by the next sweep; anything else needs an operator.
func (s *Sweeper) queryFailed(sweepID string, err error) {
	if domain.IsRetriable(err) {
		s.metrics.RecordStoreError()
		slog.Warn("Expired offer query failed, next sweep retries",
			slog.String("sweep_id", sweepID),
			slog.Duration("interval", s.interval),
			slog.Any("error", err))
		return
	}

	s.metrics.RecordFatalStoreError()
	slog.Error("EXPIRED_QUERY_FATAL",
		slog.String("sweep_id", sweepID),
		slog.Any("error", err))
}
