package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/service"
)

// ExpiryWorker periodically sweeps for in-progress sessions whose timer or
// exam window ran out and auto-submits them with whatever answers were
// saved. Students who close their laptop still get graded.
type ExpiryWorker struct {
	sessionService *service.ExamSessionService
	interval       time.Duration
	log            zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessionService *service.ExamSessionService, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessionService: sessionService,
		interval:       interval,
		log:            log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			closed, err := w.sessionService.ExpireOverdue(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if closed > 0 {
				w.log.Info().Int("closed", closed).Msg("auto-submitted overdue sessions")
			}
		}
	}
}
