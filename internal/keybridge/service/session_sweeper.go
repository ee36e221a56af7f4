package service

import (
	"context"
	"log"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

// SessionSweeper periodically force-closes work sessions that have been
// open longer than the configured maximum: an employee who badged in
// but never badged out. Runs as a background goroutine and is safe to
// stop via its context or the Stop method.
type SessionSweeper struct {
	store    store.WorkSessionStore
	maxOpen  time.Duration
	interval time.Duration
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

type SweeperConfig struct {
	// MaxOpen is how long a session may stay open before being
	// force-closed. Defaults to 24h.
	MaxOpen time.Duration

	// Interval is how often the sweeper runs. Defaults to 1h.
	Interval time.Duration
}

// NewSessionSweeper creates a sweeper but does not start it.
// Call Start to begin the background loop.
func NewSessionSweeper(s store.WorkSessionStore, cfg SweeperConfig, logger *log.Logger) *SessionSweeper {
	maxOpen := cfg.MaxOpen
	if maxOpen <= 0 {
		maxOpen = 24 * time.Hour
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	return &SessionSweeper{
		store:    s,
		maxOpen:  maxOpen,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the background loop: an immediate sweep on startup, then
// one per interval until ctx is cancelled or Stop is called.
func (p *SessionSweeper) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Printf("work-session sweeper started (max open=%s, interval=%s)", p.maxOpen, p.interval)
}

// Stop signals the sweeper to exit and waits for it to finish.
func (p *SessionSweeper) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *SessionSweeper) loop(ctx context.Context) {
	defer close(p.done)

	p.sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *SessionSweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-p.maxOpen)
	closed, err := p.store.CloseOlderThan(ctx, cutoff, now)
	if err != nil {
		p.logger.Printf("work-session sweep error: %v", err)
		return
	}
	if closed > 0 {
		p.logger.Printf("work-session sweep: force-closed %d sessions open since before %s",
			closed, cutoff.Format(time.RFC3339))
	}
}
