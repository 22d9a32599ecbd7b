package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Controller is a non-blocking, set-associative, write-back cache
// controller between a single requester and a single block-granular
// backing store.
//
// The controller is a synchronous, tick-driven automaton. Each call to
// Tick advances one cycle: the pending backing-store completion (if any)
// is merged first, then the presented request is admitted or rejected,
// then the sequencer issues the next backing-store transaction. Hits
// complete on the tick they are presented; misses are absorbed into MSHR
// slots so independent hits and further misses keep flowing while
// fetches are outstanding.
type Controller struct {
	config    Config
	directory *akitacache.DirectoryImpl
	lfsr      *LFSR
	mshr      *MSHRBank

	// Line data, indexed by setID*NumWays + wayID. Tags and state live
	// in the Akita directory.
	dataStore [][]byte

	store        BlockStore
	victimFinder akitacache.VictimFinder

	// serviceSlot is the MSHR slot whose transaction is in flight at
	// the backing store, or -1 when the channel is idle.
	serviceSlot int

	flushing         bool
	flushCollected   bool
	flushOutstanding bool
	flushQueue       []BlockTransaction

	stats Statistics
}

// TickResult reports the outcome of one tick.
type TickResult struct {
	// Accepted reports whether the presented request was admitted this
	// tick. A rejected request must be re-presented on a later tick.
	Accepted bool
	// Responses holds the requester-facing completions produced this
	// tick. A miss completion and a same-tick hit may both appear, in
	// that order.
	Responses []Response
}

// ControllerOption customizes controller construction.
type ControllerOption func(*Controller)

// WithVictimFinder replaces the LFSR-driven replacement policy.
func WithVictimFinder(finder akitacache.VictimFinder) ControllerOption {
	return func(c *Controller) {
		c.victimFinder = finder
	}
}

// NewController creates a controller with the given configuration,
// attached to the given backing store.
func NewController(
	config Config,
	store BlockStore,
	options ...ControllerOption,
) *Controller {
	lfsr := NewLFSR(config.LFSRSeed)

	totalLines := config.NumSets * NumWays
	dataStore := make([][]byte, totalLines)
	for i := range dataStore {
		dataStore[i] = make([]byte, BlockSize)
	}

	c := &Controller{
		config:       config,
		lfsr:         lfsr,
		victimFinder: NewLFSRVictimFinder(lfsr),
		mshr:         NewMSHRBank(config.NumMSHR),
		dataStore:    dataStore,
		store:        store,
		serviceSlot:  -1,
	}
	for _, option := range options {
		option(c)
	}

	c.directory = akitacache.NewDirectory(
		config.NumSets, NumWays, BlockSize, c.victimFinder)

	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Ready reports coarse requester-facing readiness. Per-request
// admission (conflicts, MSHR saturation) is reported through
// TickResult.Accepted; Ready only goes low while a flush drains.
func (c *Controller) Ready() bool {
	return !c.flushing
}

// Tick advances the controller by one cycle. req is the request the
// requester presents this tick, or nil when it presents none. The
// controller ticks the backing store itself, so the driver only ticks
// the controller.
func (c *Controller) Tick(req *Request) TickResult {
	c.stats.Ticks++
	c.lfsr.Step()
	c.store.Tick()

	result := TickResult{}
	c.collectCompletion(&result)
	c.advanceFlush()

	if req != nil {
		if c.flushing {
			c.stats.Stalls++
		} else {
			result.Accepted = c.admit(*req, &result)
		}
	}

	c.issueService()

	return result
}

// StartFlush begins draining the cache: no new requests are admitted,
// outstanding misses run to completion, then every dirty line is
// written back through the normal one-at-a-time sequencer and cleaned.
func (c *Controller) StartFlush() {
	c.flushing = true
}

// Flushing reports whether a flush is still draining.
func (c *Controller) Flushing() bool {
	return c.flushing
}

// Reset invalidates every line without write-back, clears the MSHR bank
// and counters, and reseeds the replacement generator. The backing
// store is assumed idle.
func (c *Controller) Reset() {
	c.directory.Reset()
	c.mshr.Reset()
	c.lfsr.Reseed(c.config.LFSRSeed)
	c.serviceSlot = -1
	c.flushing = false
	c.flushCollected = false
	c.flushOutstanding = false
	c.flushQueue = nil
	c.stats = Statistics{}
}

// admit runs the per-request admission decision: hit, conflict stall,
// MSHR allocation, or saturation stall, in that order.
func (c *Controller) admit(req Request, result *TickResult) bool {
	lineAddr := LineAddr(req.Address)
	offset := uint64(LineOffset(req.Address))

	// Hits are never blocked by outstanding misses.
	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		c.serveHit(req, block, offset, result)
		return true
	}

	// A second miss to a block already in flight must wait for the
	// first; a duplicate slot would duplicate the fetch.
	if c.mshr.Conflict(lineAddr) {
		c.stats.ConflictStalls++
		c.stats.Stalls++
		return false
	}

	idx, ok := c.mshr.Allocate()
	if !ok {
		c.stats.FullStalls++
		c.stats.Stalls++
		return false
	}

	victim := c.directory.FindVictim(lineAddr)
	if victim == nil {
		// Every way of the set is claimed by an in-flight miss.
		c.mshr.Free(idx)
		c.stats.Stalls++
		return false
	}

	c.allocateMiss(&c.mshr.Slots[idx], req, lineAddr, int(offset), victim)
	return true
}

func (c *Controller) serveHit(
	req Request,
	block *akitacache.Block,
	offset uint64,
	result *TickResult,
) {
	lineData := c.dataStore[c.blockIndex(block)]

	if req.IsWrite {
		storeData(lineData, offset, req.Size.Bytes(), req.Data)
		block.IsDirty = true
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}
	c.directory.Visit(block)
	c.stats.Hits++

	result.Responses = append(result.Responses, Response{
		Address: req.Address,
		IsWrite: req.IsWrite,
		Hit:     true,
		Data:    extractData(lineData, offset, req.Size.Bytes()),
	})
}

// allocateMiss records the miss context in the slot and claims the
// victim way. If the victim is dirty, its contents are snapshotted for
// write-back and the fill waits behind that write.
func (c *Controller) allocateMiss(
	slot *MSHRSlot,
	req Request,
	lineAddr uint64,
	offset int,
	victim *akitacache.Block,
) {
	slot.LineAddr = lineAddr
	slot.SetID = victim.SetID
	slot.WayID = victim.WayID
	slot.LineOffset = offset
	slot.IsWrite = req.IsWrite
	slot.Size = req.Size
	slot.WriteData = req.Data

	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			lineData := c.dataStore[c.blockIndex(victim)]
			slot.WritebackPending = true
			slot.WritebackAddr = victim.Tag
			slot.WritebackData = append([]byte(nil), lineData...)
			c.stats.Writebacks++
		}
	}

	// The way is claimed until the fill installs. Invalidating keeps
	// the stale tag from hitting mid-fill; locking keeps a second miss
	// in the same set from drawing the same way.
	victim.IsValid = false
	victim.IsDirty = false
	victim.IsLocked = true

	if req.IsWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}
	c.stats.Misses++
}

// collectCompletion consumes at most one backing-store completion. A
// finished write-back re-arms the slot so its fetch issues next; a
// finished fetch installs the line, merges any pending write, responds
// to the requester, and frees the slot.
func (c *Controller) collectCompletion(result *TickResult) {
	rsp, ok := c.store.Poll()
	if !ok {
		return
	}

	if c.flushOutstanding {
		c.flushOutstanding = false
		return
	}

	if c.serviceSlot < 0 {
		// Completion for a transaction issued before a Reset.
		return
	}

	idx := c.serviceSlot
	c.serviceSlot = -1
	slot := &c.mshr.Slots[idx]

	if rsp.IsWrite {
		slot.WritebackPending = false
		slot.Issued = false
		return
	}

	c.installAndMerge(idx, slot, rsp, result)
}

func (c *Controller) installAndMerge(
	idx int,
	slot *MSHRSlot,
	rsp BlockResponse,
	result *TickResult,
) {
	block := c.directory.GetSets()[slot.SetID].Blocks[slot.WayID]
	lineData := c.dataStore[slot.SetID*NumWays+slot.WayID]
	copy(lineData, rsp.Data)

	block.Tag = slot.LineAddr
	block.IsValid = true
	block.IsLocked = false
	block.IsDirty = slot.IsWrite
	c.directory.Visit(block)

	offset := uint64(slot.LineOffset)
	if slot.IsWrite {
		storeData(lineData, offset, slot.Size.Bytes(), slot.WriteData)
	}

	result.Responses = append(result.Responses, Response{
		Address: slot.LineAddr + offset,
		IsWrite: slot.IsWrite,
		Hit:     false,
		Data:    extractData(lineData, offset, slot.Size.Bytes()),
	})

	c.mshr.Free(idx)
}

// issueService drives the single backing-store channel: the
// lowest-index MSHR slot needing service goes first (write-back before
// fetch within a slot), then queued flush write-backs.
func (c *Controller) issueService() {
	if c.serviceSlot >= 0 || c.flushOutstanding {
		return
	}

	if i, ok := c.mshr.NextUnissued(); ok {
		slot := &c.mshr.Slots[i]

		var txn BlockTransaction
		if slot.WritebackPending {
			txn = BlockTransaction{
				IsWrite: true,
				Address: slot.WritebackAddr,
				Data:    slot.WritebackData,
			}
		} else {
			txn = BlockTransaction{Address: slot.LineAddr}
		}

		if !c.store.Submit(txn) {
			return
		}
		slot.Issued = true
		c.serviceSlot = i
		if !txn.IsWrite {
			c.stats.Fetches++
		}
		return
	}

	if c.flushCollected && len(c.flushQueue) > 0 {
		if !c.store.Submit(c.flushQueue[0]) {
			return
		}
		c.flushQueue = c.flushQueue[1:]
		c.flushOutstanding = true
	}
}

// advanceFlush collects the dirty lines once the MSHR bank has drained,
// and finishes the flush once the queue is empty.
func (c *Controller) advanceFlush() {
	if !c.flushing {
		return
	}

	if !c.flushCollected {
		if c.mshr.Used() > 0 || c.serviceSlot >= 0 {
			return
		}
		c.collectDirtyLines()
		c.flushCollected = true
	}

	if len(c.flushQueue) == 0 && !c.flushOutstanding {
		c.flushing = false
		c.flushCollected = false
		c.flushQueue = nil
		c.stats.Flushes++
	}
}

func (c *Controller) collectDirtyLines() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid || !block.IsDirty {
				continue
			}
			lineData := c.dataStore[c.blockIndex(block)]
			c.flushQueue = append(c.flushQueue, BlockTransaction{
				IsWrite: true,
				Address: block.Tag,
				Data:    append([]byte(nil), lineData...),
			})
			block.IsDirty = false
			c.stats.Writebacks++
		}
	}
}

// blockIndex computes the index into dataStore for a block.
func (c *Controller) blockIndex(block *akitacache.Block) int {
	return block.SetID*NumWays + block.WayID
}

// extractData extracts a little-endian value of the given size from a
// line.
func extractData(data []byte, offset uint64, size int) uint64 {
	if int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData splices a little-endian value of the given size into a
// line.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
