package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// DefaultLFSRSeed is the reset value of the replacement shift register.
const DefaultLFSRSeed uint16 = 0xACE1

// LFSR is a 16-bit maximal-length linear feedback shift register with
// feedback taps at bits 15, 13, 12, and 10. It advances one step per
// controller tick regardless of activity, so victim selection is
// pseudo-random but fully reproducible for a given seed.
type LFSR struct {
	state uint16
}

// NewLFSR creates an LFSR with the given seed. A zero seed would lock
// the register at zero forever, so it is replaced with DefaultLFSRSeed.
func NewLFSR(seed uint16) *LFSR {
	l := &LFSR{}
	l.Reseed(seed)
	return l
}

// Reseed resets the register to the given seed (or DefaultLFSRSeed if
// the seed is zero).
func (l *LFSR) Reseed(seed uint16) {
	if seed == 0 {
		seed = DefaultLFSRSeed
	}
	l.state = seed
}

// Step advances the register by one position.
func (l *LFSR) Step() {
	feedback := (l.state>>15 ^ l.state>>13 ^ l.state>>12 ^ l.state>>10) & 1
	l.state = l.state<<1 | feedback
}

// Value returns the current register contents.
func (l *LFSR) Value() uint16 {
	return l.state
}

// Way returns the way selector derived from the low bits of the
// register.
func (l *LFSR) Way() int {
	return int(l.state) & (NumWays - 1)
}

// LFSRVictimFinder selects eviction victims pseudo-randomly from the
// replacement LFSR. It plugs into the Akita cache directory in place of
// the stock LRU victim finder.
//
// Selection prefers an invalid, unclaimed way so that cold misses fill
// every way of a set before any valid line is evicted. Ways locked by an
// in-flight miss are never selected; if every way of the set is locked,
// no victim is available and the requester must retry.
type LFSRVictimFinder struct {
	lfsr *LFSR
}

// NewLFSRVictimFinder creates a victim finder that samples the given
// register.
func NewLFSRVictimFinder(lfsr *LFSR) *LFSRVictimFinder {
	return &LFSRVictimFinder{lfsr: lfsr}
}

// FindVictim returns the way to evict from the set, or nil when every
// way is locked by an in-flight miss. The scan starts at the
// LFSR-selected way and wraps, so the first-match tie-break is itself
// pseudo-random.
func (f *LFSRVictimFinder) FindVictim(set *akitacache.Set) *akitacache.Block {
	numWays := len(set.Blocks)
	start := f.lfsr.Way() % numWays

	for i := 0; i < numWays; i++ {
		block := set.Blocks[(start+i)%numWays]
		if !block.IsValid && !block.IsLocked {
			return block
		}
	}

	for i := 0; i < numWays; i++ {
		block := set.Blocks[(start+i)%numWays]
		if !block.IsLocked {
			return block
		}
	}

	return nil
}
