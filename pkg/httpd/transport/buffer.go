package transport

import "sync"

// 읽기 버퍼 크기
const (
	ReadBufferSize4K  = 1 << 12 // 4KB - Small requests
	ReadBufferSize16K = 1 << 14 // 16KB - Default
	ReadBufferSize64K = 1 << 16 // 64KB - Uploads
)

var (
	readBufferPool4K  = sync.Pool{New: func() any { return make([]byte, ReadBufferSize4K) }}
	readBufferPool16K = sync.Pool{New: func() any { return make([]byte, ReadBufferSize16K) }}
	readBufferPool64K = sync.Pool{New: func() any { return make([]byte, ReadBufferSize64K) }}
)

// getReadBuffer returns a read buffer of at least size bytes.
func getReadBuffer(size int) []byte {
	switch {
	case size <= ReadBufferSize4K:
		return readBufferPool4K.Get().([]byte)
	case size <= ReadBufferSize16K:
		return readBufferPool16K.Get().([]byte)
	case size <= ReadBufferSize64K:
		return readBufferPool64K.Get().([]byte)
	default:
		return make([]byte, size)
	}
}

// putReadBuffer 버퍼 반납 (capacity에 맞는 풀로 자동 반납)
func putReadBuffer(buf []byte) {
	switch cap(buf) {
	case ReadBufferSize4K:
		readBufferPool4K.Put(buf[:cap(buf)])
	case ReadBufferSize16K:
		readBufferPool16K.Put(buf[:cap(buf)])
	case ReadBufferSize64K:
		readBufferPool64K.Put(buf[:cap(buf)])
	}
}
