package mem

import (
	"github.com/sarchlab/cachesim/timing/cache"
)

// FixedLatencyStore is a behavioral backing store with a fixed,
// artificial latency, used to exercise the cache controller. It accepts
// one block transaction at a time and completes it exactly latency
// ticks after submission, in order, with no error signaling.
//
// A transaction submitted during tick N becomes available from Poll
// during tick N+latency.
type FixedLatencyStore struct {
	memory  *Memory
	latency int

	busy      bool
	ready     bool
	remaining int
	txn       cache.BlockTransaction
}

// NewFixedLatencyStore creates a store backed by the given memory.
// Latency values below one tick are clamped to one.
func NewFixedLatencyStore(memory *Memory, latency int) *FixedLatencyStore {
	if latency < 1 {
		latency = 1
	}
	return &FixedLatencyStore{
		memory:  memory,
		latency: latency,
	}
}

// Submit hands one transaction to the store. It returns false while a
// previous transaction is still in flight.
func (s *FixedLatencyStore) Submit(txn cache.BlockTransaction) bool {
	if s.busy {
		return false
	}

	s.txn = txn
	if txn.Data != nil {
		s.txn.Data = append([]byte(nil), txn.Data...)
	}
	s.busy = true
	s.ready = false
	s.remaining = s.latency

	return true
}

// Tick advances the store by one cycle. The memory side effect happens
// when the countdown expires, so a write-back is not visible in memory
// before its completion tick.
func (s *FixedLatencyStore) Tick() {
	if !s.busy || s.ready {
		return
	}

	s.remaining--
	if s.remaining > 0 {
		return
	}

	if s.txn.IsWrite {
		s.memory.WriteBlock(s.txn.Address, s.txn.Data)
	}
	s.ready = true
}

// Poll returns the completed transaction for the current tick, if any.
func (s *FixedLatencyStore) Poll() (cache.BlockResponse, bool) {
	if !s.ready {
		return cache.BlockResponse{}, false
	}

	rsp := cache.BlockResponse{
		IsWrite: s.txn.IsWrite,
		Address: s.txn.Address,
	}
	if !s.txn.IsWrite {
		rsp.Data = s.memory.ReadBlock(s.txn.Address, cache.BlockSize)
	}

	s.busy = false
	s.ready = false
	s.txn = cache.BlockTransaction{}

	return rsp, true
}

// Busy reports whether a transaction is in flight.
func (s *FixedLatencyStore) Busy() bool {
	return s.busy
}
