package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
)

// payloadBuffer appends or consumes length-prefixed little-endian fields.
// The first error sticks; later calls are no-ops.
type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) remaining() int { return len(p.buf) - p.pos }

func (p *payloadBuffer) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
	}
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

// writeInt encodes a non-negative int as u32.
func (p *payloadBuffer) writeInt(field string, v int) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		p.fail("%s %d out of range", field, v)
		return
	}
	p.writeUint32(uint32(v))
}

// writeCount encodes a slice length as u32.
func (p *payloadBuffer) writeCount(field string, n int) {
	p.writeInt(field+" count", n)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		p.fail("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeBytes(b []byte) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, uint64(len(b)))
	p.buf = append(p.buf, b...)
}

func (p *payloadBuffer) need(n int) bool {
	if p.err != nil {
		return false
	}
	if n < 0 || p.remaining() < n {
		p.fail("need %d bytes at offset %d, %d left", n, p.pos, p.remaining())
		return false
	}
	return true
}

func (p *payloadBuffer) readUint16() uint16 {
	if !p.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(p.buf[p.pos:])
	p.pos += 2
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readInt() int {
	return int(p.readUint32())
}

// readCount reads a u32 element count and caps it by the bytes left, given
// that every element takes at least minSize bytes.
func (p *payloadBuffer) readCount(field string, minSize int) int {
	n := p.readUint32()
	if p.err != nil {
		return 0
	}
	if uint64(n)*uint64(minSize) > uint64(p.remaining()) {
		p.fail("%s count %d exceeds remaining %d bytes", field, n, p.remaining())
		return 0
	}
	return int(n)
}

func (p *payloadBuffer) readString() string {
	l := int(p.readUint16())
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

// readBytes returns a fresh copy of a u64-prefixed byte field.
func (p *payloadBuffer) readBytes() []byte {
	l := p.readUint64()
	if p.err != nil {
		return nil
	}
	if l > uint64(p.remaining()) {
		p.fail("byte field of %d exceeds remaining %d bytes", l, p.remaining())
		return nil
	}
	out := make([]byte, l)
	copy(out, p.buf[p.pos:])
	p.pos += int(l)
	return out
}
