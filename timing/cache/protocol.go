// Package cache provides a cycle-accurate non-blocking cache controller
// built on Akita cache components.
package cache

// AccessSize selects the granularity of a requester access.
type AccessSize int

const (
	// SizeByte is a 1-byte access.
	SizeByte AccessSize = iota
	// SizeHalf is a 2-byte access.
	SizeHalf
	// SizeWord is a 4-byte access.
	SizeWord
)

// Bytes returns the access width in bytes.
func (s AccessSize) Bytes() int {
	switch s {
	case SizeByte:
		return 1
	case SizeHalf:
		return 2
	default:
		return 4
	}
}

// String returns a short name for the access size.
func (s AccessSize) String() string {
	switch s {
	case SizeByte:
		return "byte"
	case SizeHalf:
		return "half"
	default:
		return "word"
	}
}

// Request is one requester-side access presented to the controller.
// The requester keeps re-presenting the same request each tick until the
// controller accepts it.
type Request struct {
	// IsWrite selects a store over a load.
	IsWrite bool
	// Size is the access granularity.
	Size AccessSize
	// Address is the flat byte address of the access.
	Address uint64
	// Data carries the value to store for writes.
	Data uint64
}

// Response is the requester-facing completion of one accepted request.
// Exactly one Response is produced per accepted Request, one or more
// ticks later.
type Response struct {
	// Address echoes the request address.
	Address uint64
	// IsWrite echoes the request direction.
	IsWrite bool
	// Hit reports whether the access was served from a resident line.
	// Miss completions report false even though the data is valid.
	Hit bool
	// Data is the loaded value for reads, or the merged stored value
	// for writes.
	Data uint64
}

// BlockTransaction is one block-granular request to the backing store.
// At most one transaction is in flight at any time.
type BlockTransaction struct {
	// IsWrite selects a write-back over a fetch.
	IsWrite bool
	// Address is the line-aligned byte address of the block.
	Address uint64
	// Data carries the block payload for write-backs.
	Data []byte
}

// BlockResponse is the completion of one BlockTransaction.
type BlockResponse struct {
	// IsWrite echoes the transaction direction.
	IsWrite bool
	// Address echoes the line-aligned block address.
	Address uint64
	// Data carries the fetched block for reads.
	Data []byte
}

// BlockStore is the backing store the controller talks to. The store
// accepts one transaction at a time and completes transactions in
// submission order, eventually and without errors.
type BlockStore interface {
	// Submit hands one transaction to the store. It returns false while
	// a previous transaction is still in flight.
	Submit(txn BlockTransaction) bool
	// Poll returns the completed transaction for the current tick, if
	// any. A completion is returned exactly once.
	Poll() (BlockResponse, bool)
	// Tick advances the store by one cycle.
	Tick()
}
