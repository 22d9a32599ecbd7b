package cache

import "math/bits"

const (
	// BlockSize is the cache line size in bytes.
	BlockSize = 32
	// NumWays is the set associativity. The 2-bit victim selector ties
	// the design to 4 ways.
	NumWays = 4
	// WordsPerLine is the number of 4-byte words in a line.
	WordsPerLine = BlockSize / 4

	blockOffsetBits = 5
	wordOffsetBits  = 2
)

// LineAddr returns the line-aligned byte address containing addr.
func LineAddr(addr uint64) uint64 {
	return addr &^ (BlockSize - 1)
}

// BlockAddr returns the block number of addr (the address with the
// intra-line offset stripped).
func BlockAddr(addr uint64) uint64 {
	return addr >> blockOffsetBits
}

// SetIndex returns the set that addr maps to.
func SetIndex(addr uint64, numSets int) int {
	return int((addr >> blockOffsetBits) % uint64(numSets))
}

// Tag returns the address bits above the set index.
func Tag(addr uint64, numSets int) uint64 {
	return addr >> (blockOffsetBits + uint(bits.TrailingZeros(uint(numSets))))
}

// WordOffset returns the index of the 4-byte word within the line.
func WordOffset(addr uint64) int {
	return int((addr >> wordOffsetBits) % WordsPerLine)
}

// LineOffset returns the byte offset of addr within its line.
func LineOffset(addr uint64) int {
	return int(addr % BlockSize)
}
