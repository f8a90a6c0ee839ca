package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/repository"
)

// CleanupJob force-ends sessions whose clients went away without stopping
// them. Like the start-time force-close, it only sets the end time; the
// session keeps whatever metrics it had at the last update.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	maxAge      time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(sessionRepo repository.SessionRepository, maxAge, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		maxAge:      maxAge,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.maxAge)
	count, err := j.sessionRepo.CloseStale(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to close stale sessions")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("closed stale sessions")
	}
}
