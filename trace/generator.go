package trace

import (
	"math/rand"

	"github.com/sarchlab/cachesim/timing/cache"
)

// Generator produces reproducible random access streams for stress
// workloads. The same seed always yields the same stream.
type Generator struct {
	rng *rand.Rand

	// AddressSpan bounds generated addresses to [0, AddressSpan).
	AddressSpan uint64
	// WriteRatio is the fraction of accesses that are writes.
	WriteRatio float64
}

// NewGenerator creates a generator with the given seed. The defaults
// span 64KB of address space with a 50/50 read/write mix.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:         rand.New(rand.NewSource(seed)),
		AddressSpan: 64 * 1024,
		WriteRatio:  0.5,
	}
}

// Next produces one access. Addresses are aligned to the access size,
// so generated half-word and word accesses never straddle their
// natural boundary.
func (g *Generator) Next() cache.Request {
	var size cache.AccessSize
	switch g.rng.Intn(3) {
	case 0:
		size = cache.SizeByte
	case 1:
		size = cache.SizeHalf
	default:
		size = cache.SizeWord
	}

	align := uint64(size.Bytes())
	addr := g.rng.Uint64() % g.AddressSpan
	addr -= addr % align

	req := cache.Request{
		Size:    size,
		Address: addr,
	}
	if g.rng.Float64() < g.WriteRatio {
		req.IsWrite = true
		req.Data = g.rng.Uint64()
	}

	return req
}

// Generate produces n accesses.
func (g *Generator) Generate(n int) []cache.Request {
	requests := make([]cache.Request, n)
	for i := range requests {
		requests[i] = g.Next()
	}
	return requests
}
