// Package mem provides the behavioral backing-memory models used by the
// cache controller simulator.
package mem

const pageSize = 4096

// Memory is a sparse, little-endian, byte-addressable memory. Pages are
// allocated on first write; unwritten bytes read as zero.
type Memory struct {
	pages map[uint64][]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[uint64][]byte),
	}
}

func (m *Memory) page(addr uint64, allocate bool) []byte {
	pageID := addr / pageSize
	page, ok := m.pages[pageID]
	if !ok && allocate {
		page = make([]byte, pageSize)
		m.pages[pageID] = page
	}
	return page
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) uint8 {
	page := m.page(addr, false)
	if page == nil {
		return 0
	}
	return page[addr%pageSize]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	page := m.page(addr, true)
	page[addr%pageSize] = value
}

// Read16 reads a 16-bit little-endian value.
func (m *Memory) Read16(addr uint64) uint16 {
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Write16 writes a 16-bit little-endian value.
func (m *Memory) Write16(addr uint64, value uint16) {
	m.Write8(addr, uint8(value))
	m.Write8(addr+1, uint8(value>>8))
}

// Read32 reads a 32-bit little-endian value.
func (m *Memory) Read32(addr uint64) uint32 {
	return uint32(m.Read16(addr)) | uint32(m.Read16(addr+2))<<16
}

// Write32 writes a 32-bit little-endian value.
func (m *Memory) Write32(addr uint64, value uint32) {
	m.Write16(addr, uint16(value))
	m.Write16(addr+2, uint16(value>>16))
}

// Read64 reads a 64-bit little-endian value.
func (m *Memory) Read64(addr uint64) uint64 {
	return uint64(m.Read32(addr)) | uint64(m.Read32(addr+4))<<32
}

// Write64 writes a 64-bit little-endian value.
func (m *Memory) Write64(addr uint64, value uint64) {
	m.Write32(addr, uint32(value))
	m.Write32(addr+4, uint32(value>>32))
}

// ReadBlock reads n bytes starting at addr.
func (m *Memory) ReadBlock(addr uint64, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = m.Read8(addr + uint64(i))
	}
	return data
}

// WriteBlock writes the given bytes starting at addr.
func (m *Memory) WriteBlock(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}
