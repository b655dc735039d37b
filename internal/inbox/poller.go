package inbox

import (
	"AgentDesk/internal/lib/metrics"
	"AgentDesk/internal/lib/sl"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the polling period of the inbox.
const DefaultInterval = 10 * time.Second

// Poller runs Session.PollOnce periodically. A tick that arrives while a
// round is still running is skipped. Start after Stop restarts it.
type Poller struct {
	session  *Session
	interval time.Duration
	log      *slog.Logger

	inFlight atomic.Bool
	mu       sync.Mutex
	cancel   context.CancelFunc
}

func NewPoller(session *Session, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		session:  session,
		interval: interval,
		log:      log.With(sl.Module("inbox.poller")),
	}
}

// Start replaces any running loop with a new one bound to ctx.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.loop(ctx)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.Tick(ctx)
		}
	}
}

// Tick runs one round unless another is in flight; it reports whether the
// round ran.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.PollRounds.WithLabelValues("skipped").Inc()
		p.log.Debug("poll round skipped, previous still running")
		return false
	}
	defer p.inFlight.Store(false)

	n, err := p.session.PollOnce(ctx)
	switch {
	case err != nil:
		metrics.PollRounds.WithLabelValues("error").Inc()
	case n > 0:
		metrics.PollRounds.WithLabelValues("changed").Inc()
		p.log.Debug("conversations patched", slog.Int("count", n))
	default:
		metrics.PollRounds.WithLabelValues("empty").Inc()
	}
	return true
}
