package jobs

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/storage"
)

// IdleJob periodically flips sessions with no recent activity to idle.
// Purely informational: sessions are never deleted by the engine, and an
// idle session still receives routed replies.
type IdleJob struct {
	store     storage.Store
	interval  time.Duration
	threshold time.Duration
	stop      chan struct{}
}

// NewIdleJob creates the idle sweeper.
func NewIdleJob(store storage.Store, interval, threshold time.Duration) *IdleJob {
	return &IdleJob{
		store:     store,
		interval:  interval,
		threshold: threshold,
		stop:      make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (j *IdleJob) Start() {
	log.Info().Dur("interval", j.interval).Dur("threshold", j.threshold).Msg("starting idle session sweeper")
	go j.run()
}

// Stop halts the sweep loop.
func (j *IdleJob) Stop() {
	close(j.stop)
}

func (j *IdleJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.store.MarkIdle(j.threshold); n > 0 {
				log.Info().Int("sessions", n).Msg("marked inactive sessions idle")
			}
		case <-j.stop:
			return
		}
	}
}
