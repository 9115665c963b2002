package buf

import "sync"

// Storage tiers for request buffers.
// Most requests fit the 512B or 4KB tier; the 1MB tier covers large
// form posts. Anything larger is left to the GC.
const (
	Size32   = 1 << 5  // 32 bytes
	Size512  = 1 << 9  // 512 bytes
	Size4K   = 1 << 12 // 4 KB
	Size16K  = 1 << 14 // 16 KB
	Size64K  = 1 << 16 // 64 KB
	Size256K = 1 << 18 // 256 KB
	Size1M   = 1 << 20 // 1 MB
)

var tierSizes = [...]int{Size32, Size512, Size4K, Size16K, Size64K, Size256K, Size1M}

var tierPools [len(tierSizes)]sync.Pool

func init() {
	for i, size := range tierSizes {
		tierPools[i].New = func() any { return make([]byte, size) }
	}
}

// tierFor returns the smallest tier holding size bytes, or -1.
func tierFor(size int) int {
	for i, s := range tierSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// alloc returns storage of exactly size bytes, backed by the smallest tier
// that can hold it.
func alloc(size int) []byte {
	i := tierFor(size)
	if i < 0 {
		return make([]byte, size)
	}
	return tierPools[i].Get().([]byte)[:size]
}

// free returns storage to the tier matching its capacity. Storage of any
// other capacity is left to the GC.
func free(buf []byte) {
	if buf == nil {
		return
	}
	i := tierFor(cap(buf))
	if i < 0 || tierSizes[i] != cap(buf) {
		return
	}
	tierPools[i].Put(buf[:cap(buf)])
}
