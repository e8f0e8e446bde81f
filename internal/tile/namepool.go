package tile

import "encoding/binary"

// NamePool interns strings into a contiguous length-prefixed blob and hands
// out stable byte offsets. The pool is append-only for the lifetime of one
// tile; the empty string is always at offset 0.
type NamePool struct {
	blob    []byte
	offsets map[string]uint32
}

// NewNamePool creates a pool seeded with the empty string.
func NewNamePool() *NamePool {
	p := &NamePool{
		blob:    make([]byte, 0, 4096),
		offsets: make(map[string]uint32),
	}
	p.Add("")
	return p
}

// Add interns s and returns its offset. Repeated adds of the same string
// return the original offset.
func (p *NamePool) Add(s string) uint32 {
	if off, ok := p.offsets[s]; ok {
		return off
	}
	off := uint32(len(p.blob))
	p.blob = binary.AppendUvarint(p.blob, uint64(len(s)))
	p.blob = append(p.blob, s...)
	p.offsets[s] = off
	return off
}

// Get decodes the string stored at offset.
func (p *NamePool) Get(offset uint32) string {
	return DecodeName(p.blob, offset)
}

// Blob returns the serialized pool.
func (p *NamePool) Blob() []byte { return p.blob }

// Size returns the blob length in bytes.
func (p *NamePool) Size() int { return len(p.blob) }

// DecodeName reads the length-prefixed string at offset in a name blob.
func DecodeName(blob []byte, offset uint32) string {
	if int(offset) >= len(blob) {
		return ""
	}
	n, read := binary.Uvarint(blob[offset:])
	if read <= 0 {
		return ""
	}
	start := int(offset) + read
	end := start + int(n)
	if end > len(blob) {
		return ""
	}
	return string(blob[start:end])
}
