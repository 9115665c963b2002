package buf

// Span identifies a half-open byte range [Offset, Offset+Length) inside
// one Buffer. It is resolved against the buffer at access time, so it
// stays valid when the buffer grows. A span cut from a buffer that has
// since been released or detached resolves to nil.
type Span struct {
	owner  uint64
	Offset int
	Length int
}

// End returns the offset just past the span.
func (s Span) End() int {
	return s.Offset + s.Length
}

// IsZero reports whether the span was never cut from a buffer.
func (s Span) IsZero() bool {
	return s.owner == 0
}
