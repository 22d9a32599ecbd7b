package cache

// MSHRSlot tracks one in-flight miss. A slot is created when a
// qualifying miss is accepted and destroyed the tick its fetch response
// is merged. At most one slot exists per distinct block address.
type MSHRSlot struct {
	// InUse marks the slot as allocated.
	InUse bool
	// LineAddr is the line-aligned address of the missed block.
	LineAddr uint64
	// SetID and WayID locate the line slot claimed for the fill.
	SetID int
	WayID int
	// LineOffset is the byte offset of the access within the line.
	LineOffset int
	// IsWrite, Size, and WriteData capture the original access so a
	// write miss can be merged into the fetched block.
	IsWrite   bool
	Size      AccessSize
	WriteData uint64
	// WritebackPending indicates the evicted line was dirty and its
	// snapshot must be written back before the fetch is issued.
	WritebackPending bool
	// WritebackAddr and WritebackData snapshot the evicted line.
	WritebackAddr uint64
	WritebackData []byte
	// Issued marks the slot's current backing-store transaction as
	// sent. A write-back completion clears it so the fetch follows.
	Issued bool
}

// MSHRBank is a fixed arena of miss-tracking slots. Allocation and
// service scans both run lowest-index-first; the tie-break is externally
// observable because it decides which miss is serviced first under
// saturation.
type MSHRBank struct {
	// Slots holds the miss-tracking arena, indexed by slot id.
	Slots []MSHRSlot
}

// NewMSHRBank creates a bank with the given number of slots.
func NewMSHRBank(capacity int) *MSHRBank {
	return &MSHRBank{
		Slots: make([]MSHRSlot, capacity),
	}
}

// Allocate claims the lowest-index free slot. It returns false when the
// bank is saturated.
func (b *MSHRBank) Allocate() (int, bool) {
	for i := range b.Slots {
		if !b.Slots[i].InUse {
			b.Slots[i] = MSHRSlot{InUse: true}
			return i, true
		}
	}
	return 0, false
}

// Free releases the slot for reuse.
func (b *MSHRBank) Free(i int) {
	b.Slots[i] = MSHRSlot{}
}

// Conflict reports whether any in-use slot already tracks the given
// line address. A conflicting request must stall until that slot frees;
// allocating a second slot would duplicate the fetch and diverge the
// victim choice.
func (b *MSHRBank) Conflict(lineAddr uint64) bool {
	for i := range b.Slots {
		if b.Slots[i].InUse && b.Slots[i].LineAddr == lineAddr {
			return true
		}
	}
	return false
}

// IsFull reports whether no slot is free.
func (b *MSHRBank) IsFull() bool {
	for i := range b.Slots {
		if !b.Slots[i].InUse {
			return false
		}
	}
	return true
}

// Used returns the number of in-use slots.
func (b *MSHRBank) Used() int {
	n := 0
	for i := range b.Slots {
		if b.Slots[i].InUse {
			n++
		}
	}
	return n
}

// NextUnissued returns the lowest-index slot whose current transaction
// has not been sent to the backing store yet.
func (b *MSHRBank) NextUnissued() (int, bool) {
	for i := range b.Slots {
		if b.Slots[i].InUse && !b.Slots[i].Issued {
			return i, true
		}
	}
	return 0, false
}

// Reset clears every slot.
func (b *MSHRBank) Reset() {
	for i := range b.Slots {
		b.Slots[i] = MSHRSlot{}
	}
}
