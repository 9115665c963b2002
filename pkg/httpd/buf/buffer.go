// Package buf implements the per-message accumulation buffer.
//
// A Buffer holds every byte of one in-progress HTTP message plus the zero
// sentinels separating its fields. Callers address fields through Span
// values (offsets), never through raw slices, so growth never invalidates
// what was recorded earlier.
package buf

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrOverflow is returned when growing would exceed Limits.MaxSize.
	ErrOverflow = errors.New("buf: message exceeds maximum buffer size")

	// ErrInvalidLimits is returned by Limits.Validate.
	ErrInvalidLimits = errors.New("buf: invalid buffer limits")
)

// nextOwner hands out buffer identities. Zero is reserved for "no owner".
var nextOwner atomic.Uint64

func newOwner() uint64 {
	return nextOwner.Add(1)
}

// Limits bounds the growth of a Buffer.
type Limits struct {
	// IncreaseUnit is the minimum growth step. Zero grows exactly to fit.
	IncreaseUnit int
	// MaxSize is the hard ceiling on total storage. It must be positive.
	MaxSize int
}

// Validate checks that the limits can be used to build buffers.
func (l Limits) Validate() error {
	if l.MaxSize <= 0 || l.IncreaseUnit < 0 {
		return ErrInvalidLimits
	}
	return nil
}

// Buffer is a single-owner growable byte buffer.
//
// len(data) is the buffer capacity; pos is the write cursor. The cursor
// never passes len(data)-1 after an Append, leaving room for one sentinel.
type Buffer struct {
	data   []byte
	pos    int
	owner  uint64
	limits Limits
}

// New creates an empty buffer. No storage is allocated until the first write.
func New(limits Limits) *Buffer {
	return &Buffer{
		owner:  newOwner(),
		limits: limits,
	}
}

// Len returns the number of bytes written, sentinels included.
func (b *Buffer) Len() int {
	return b.pos
}

// Cap returns the current storage size.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Limits returns the growth limits of the buffer.
func (b *Buffer) Limits() Limits {
	return b.limits
}

// EnsureCapacity makes room for n more bytes plus one sentinel.
// When the storage is too small it grows by the deficit or by
// IncreaseUnit, whichever is larger. Growth past MaxSize fails with
// ErrOverflow and leaves the buffer unchanged.
func (b *Buffer) EnsureCapacity(n int) error {
	need := b.pos + n + 1
	if need <= len(b.data) {
		return nil
	}

	grow := max(need-len(b.data), b.limits.IncreaseUnit)
	size := len(b.data) + grow
	if size > b.limits.MaxSize {
		return ErrOverflow
	}

	data := alloc(size)
	copy(data, b.data[:b.pos])
	free(b.data)
	b.data = data
	return nil
}

// Append copies p at the cursor and returns the offset it was written at.
func (b *Buffer) Append(p []byte) (int, error) {
	if err := b.EnsureCapacity(len(p)); err != nil {
		return 0, err
	}

	offset := b.pos
	b.pos += copy(b.data[b.pos:], p)
	return offset, nil
}

// Terminate writes a zero sentinel at the cursor without advancing it.
// The next Append overwrites the sentinel, so a field written in several
// appends stays contiguous and is always terminated.
func (b *Buffer) Terminate() error {
	if err := b.EnsureCapacity(0); err != nil {
		return err
	}
	b.data[b.pos] = 0
	return nil
}

// Seal terminates the current field and steps past the sentinel, keeping
// it. It returns the offset where the next field starts.
func (b *Buffer) Seal() (int, error) {
	if err := b.Terminate(); err != nil {
		return 0, err
	}
	b.pos++
	return b.pos, nil
}

// Span returns a span over [offset, offset+length) owned by this buffer.
func (b *Buffer) Span(offset, length int) Span {
	return Span{owner: b.owner, Offset: offset, Length: length}
}

// Bytes resolves s against the current storage. It returns nil if s
// belongs to another buffer, if the storage was released, or if s lies
// outside the written region. The result is capped so appending to it
// cannot overwrite neighbouring fields.
func (b *Buffer) Bytes(s Span) []byte {
	if s.owner != b.owner || b.data == nil {
		return nil
	}
	if s.Offset < 0 || s.Length < 0 || s.End() > b.pos {
		return nil
	}
	return b.data[s.Offset:s.End():s.End()]
}

// Detach moves the storage and everything written so far into a new
// Buffer and reinitializes b to empty. Spans already cut from b resolve
// against the returned buffer; b gets a fresh identity.
func (b *Buffer) Detach() *Buffer {
	moved := &Buffer{
		data:   b.data,
		pos:    b.pos,
		owner:  b.owner,
		limits: b.limits,
	}

	// 소유권 이전 후 초기화
	b.data = nil
	b.pos = 0
	b.owner = newOwner()
	return moved
}

// Clone returns a deep copy backed by GC-managed storage. Spans cut from
// b resolve against the clone as well.
func (b *Buffer) Clone() *Buffer {
	var data []byte
	if b.data != nil {
		data = make([]byte, b.pos+1)
		copy(data, b.data[:b.pos])
	}
	return &Buffer{
		data:   data,
		pos:    b.pos,
		owner:  b.owner,
		limits: b.limits,
	}
}

// Release returns the storage to the pool. Every span cut from b resolves
// to nil afterwards. Release is idempotent.
func (b *Buffer) Release() {
	free(b.data)
	b.data = nil
	b.pos = 0
	b.owner = newOwner()
}

// SetLimits replaces the growth limits. It only affects future growth.
func (b *Buffer) SetLimits(limits Limits) {
	b.limits = limits
}
