package risk

import (
	"log"
	"sync"
	"time"
)

type BreakerConfig struct {
	// MaxLossPct trips the breaker when realized+unrealized drawdown over
	// the rolling window exceeds this fraction of equity.
	MaxLossPct float64
	Window     time.Duration

	// RejectionLimit trips after this many consecutive venue rejections.
	// 0 disables.
	RejectionLimit int

	// AllowCloses lets risk-reducing orders through while tripped.
	AllowCloses bool
}

type plMark struct {
	t  time.Time
	pl float64
}

// Breaker is the one-way circuit breaker. Once tripped, no new orders are
// approved until Reset is called explicitly; there is no automatic reset.
type Breaker struct {
	mu         sync.Mutex
	cfg        BreakerConfig
	tripped    bool
	reason     string
	trippedAt  time.Time
	rejections int
	marks      []plMark
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &Breaker{cfg: cfg}
}

func (k *Breaker) Tripped() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tripped
}

// State returns the trip flag, reason, and trip time.
func (k *Breaker) State() (bool, string, time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tripped, k.reason, k.trippedAt
}

func (k *Breaker) AllowCloses() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cfg.AllowCloses
}

// Trip moves the breaker to tripped. Idempotent; the first reason wins.
func (k *Breaker) Trip(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tripLocked(reason, time.Now())
}

func (k *Breaker) tripLocked(reason string, now time.Time) {
	if k.tripped {
		return
	}
	k.tripped = true
	k.reason = reason
	k.trippedAt = now
	metricBreakerState.Set(1)
	log.Printf("CIRCUIT BREAKER TRIPPED: %s", reason)
}

// Reset clears the trip. This is the only way out of the tripped state and
// is expected to be an explicit operator or session-boundary action.
func (k *Breaker) Reset(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.tripped {
		return
	}
	k.tripped = false
	k.reason = ""
	k.rejections = 0
	k.marks = k.marks[:0]
	metricBreakerState.Set(0)
	log.Printf("circuit breaker reset: %s", reason)
}

// NoteRejection records a venue rejection; enough of them in a row trips.
func (k *Breaker) NoteRejection() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.rejections++
	if k.cfg.RejectionLimit > 0 && k.rejections >= k.cfg.RejectionLimit {
		k.tripLocked("venue rejection streak", time.Now())
	}
}

// NoteAccepted resets the rejection streak.
func (k *Breaker) NoteAccepted() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rejections = 0
}

// ObservePL records total (realized+unrealized) P/L and trips when the
// drawdown from the window's high-water mark exceeds MaxLossPct of equity.
func (k *Breaker) ObservePL(now time.Time, totalPL, equity float64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.marks = append(k.marks, plMark{t: now, pl: totalPL})
	cutoff := now.Add(-k.cfg.Window)
	for len(k.marks) > 0 && k.marks[0].t.Before(cutoff) {
		k.marks = k.marks[1:]
	}

	if k.tripped || k.cfg.MaxLossPct <= 0 || equity <= 0 {
		return
	}

	high := k.marks[0].pl
	for _, m := range k.marks {
		if m.pl > high {
			high = m.pl
		}
	}
	if high-totalPL >= k.cfg.MaxLossPct*equity {
		k.tripLocked("rolling window loss limit", now)
	}
}
