package checkpoint

import (
	"context"
	"log"
	"time"

	"github.com/senga07/xAgentic/internal/observability"
)

// Sweeper periodically purges terminal sessions older than the retention
// window. Live and suspended sessions are never touched.
type Sweeper struct {
	Store     Store
	Interval  time.Duration
	Retention time.Duration
	Logger    *observability.Logger
}

func NewSweeper(store Store, interval, retention time.Duration, logger *observability.Logger) *Sweeper {
	return &Sweeper{
		Store:     store,
		Interval:  interval,
		Retention: retention,
		Logger:    logger,
	}
}

// Start blocks, sweeping on each tick until the context is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Checkpoint sweeper started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.Retention)
	purged, err := s.Store.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		log.Printf("Error sweeping checkpoints: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Swept %d terminal sessions older than %s", purged, s.Retention)
		if s.Logger != nil {
			s.Logger.LogSweep(purged)
		}
	}
}
