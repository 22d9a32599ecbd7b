package cache

// Statistics holds aggregate controller counters. They are exposed to
// the debug probe alongside the named state views.
type Statistics struct {
	// Reads and Writes count accepted requests by direction.
	Reads  uint64
	Writes uint64
	// Hits counts same-tick completions from resident lines.
	Hits uint64
	// Misses counts accepted requests that allocated an MSHR slot.
	Misses uint64
	// Evictions counts valid lines displaced by a fill.
	Evictions uint64
	// Writebacks counts dirty blocks written to the backing store,
	// including flush write-backs.
	Writebacks uint64
	// Fetches counts block fetch transactions issued.
	Fetches uint64
	// ConflictStalls counts rejections because the block was already
	// being missed on.
	ConflictStalls uint64
	// FullStalls counts rejections because no MSHR slot was free.
	FullStalls uint64
	// Stalls counts every rejected presentation, whatever the cause.
	Stalls uint64
	// Flushes counts completed flush operations.
	Flushes uint64
	// Ticks counts simulated cycles.
	Ticks uint64
}

// HitRate returns the fraction of accepted requests served as hits.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a copy of the controller counters.
func (c *Controller) Stats() Statistics {
	return c.stats
}

// ResetStats clears the controller counters.
func (c *Controller) ResetStats() {
	c.stats = Statistics{}
}

// ViewNames lists the internal-state views readable through View.
func ViewNames() []string {
	return []string{
		"lfsr",
		"mshr.used",
		"mshr.capacity",
		"store.busy",
		"lines.valid",
		"lines.dirty",
		"flush.pending",
	}
}

// View reads one named internal-state value. It returns false for
// unknown names. Views are read-only and do not disturb the simulated
// state.
func (c *Controller) View(name string) (uint64, bool) {
	switch name {
	case "lfsr":
		return uint64(c.lfsr.Value()), true
	case "mshr.used":
		return uint64(c.mshr.Used()), true
	case "mshr.capacity":
		return uint64(len(c.mshr.Slots)), true
	case "store.busy":
		if c.serviceSlot >= 0 || c.flushOutstanding {
			return 1, true
		}
		return 0, true
	case "lines.valid":
		return c.countLines(false), true
	case "lines.dirty":
		return c.countLines(true), true
	case "flush.pending":
		return uint64(len(c.flushQueue)), true
	}
	return 0, false
}

// Resident reports whether the block containing addr currently holds a
// valid line, without touching replacement state or counters.
func (c *Controller) Resident(addr uint64) bool {
	block := c.directory.Lookup(0, LineAddr(addr))
	return block != nil && block.IsValid
}

func (c *Controller) countLines(dirtyOnly bool) uint64 {
	var n uint64
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid {
				continue
			}
			if dirtyOnly && !block.IsDirty {
				continue
			}
			n++
		}
	}
	return n
}
