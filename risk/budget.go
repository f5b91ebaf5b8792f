package risk

import (
	"errors"
	"fmt"
	"sync"
)

var ErrBudgetExceeded = errors.New("portfolio risk budget exceeded")

// Budget tracks cumulative open risk: notional reserved for pending orders
// plus notional committed to open positions, against a ceiling. Reservations
// are keyed by intent id and move to committed as fills arrive; whatever
// remains reserved is released when the order reaches a terminal state.
// The ceiling is only ever crossed by marking, never by approval.
type Budget struct {
	mu        sync.Mutex
	ceiling   float64
	reserved  map[string]float64 // intent id -> notional
	committed map[string]float64 // instrument -> notional
}

func NewBudget(ceiling float64) *Budget {
	return &Budget{
		ceiling:   ceiling,
		reserved:  make(map[string]float64),
		committed: make(map[string]float64),
	}
}

// SetCeiling updates the ceiling (it tracks equity between cycles).
func (b *Budget) SetCeiling(c float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ceiling = c
}

func (b *Budget) Ceiling() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ceiling
}

// Used returns reserved plus committed notional.
func (b *Budget) Used() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usedLocked()
}

func (b *Budget) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ceiling - b.usedLocked()
}

// Reserve atomically reserves notional for an approved intent. It fails with
// ErrBudgetExceeded when the reservation would push used risk above the
// ceiling; partial reservations never happen.
func (b *Budget) Reserve(key string, notional float64) error {
	if notional < 0 {
		return fmt.Errorf("negative reservation %f", notional)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.usedLocked()+notional > b.ceiling {
		return fmt.Errorf("%w: used %.2f + %.2f > ceiling %.2f",
			ErrBudgetExceeded, b.usedLocked(), notional, b.ceiling)
	}
	b.reserved[key] += notional
	return nil
}

// Release frees whatever reservation remains under key (terminal order
// state). It returns the amount released.
func (b *Budget) Release(key string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	amt := b.reserved[key]
	delete(b.reserved, key)
	return amt
}

// Commit moves up to notional from the reservation to the instrument's
// committed risk (a fill converted pending risk into position risk).
func (b *Budget) Commit(key, instrument string, notional float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	avail := b.reserved[key]
	if notional > avail {
		notional = avail
	}
	if notional <= 0 {
		return
	}
	b.reserved[key] -= notional
	if b.reserved[key] <= 1e-9 {
		delete(b.reserved, key)
	}
	b.committed[instrument] += notional
}

// Free releases committed risk for an instrument (position reduced or
// closed).
func (b *Budget) Free(instrument string, notional float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.committed[instrument] -= notional
	if b.committed[instrument] <= 1e-9 {
		delete(b.committed, instrument)
	}
}

// ResetSession clears all tracked risk at an explicit session boundary.
func (b *Budget) ResetSession() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reserved = make(map[string]float64)
	b.committed = make(map[string]float64)
}

func (b *Budget) usedLocked() float64 {
	total := 0.0
	for _, v := range b.reserved {
		total += v
	}
	for _, v := range b.committed {
		total += v
	}
	return total
}
