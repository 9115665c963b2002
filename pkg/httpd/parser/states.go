package parser

type state uint8

const (
	sStart state = iota
	sMethod
	sURLStart
	sURL
	sVersion
	sRequestLineCR
	sRequestLineLF
	sHeaderStart
	sHeaderField
	sHeaderValueStart
	sHeaderValue
	sHeaderValueLF
	sHeadersLF
	sBody
	sChunkSize
	sChunkExt
	sChunkSizeLF
	sChunkData
	sChunkDataCR
	sChunkDataLF
	sTrailerStart
	sTrailer
	sTrailersLF
	sDead
)

// headerKind marks the headers that change framing or connection handling.
type headerKind uint8

const (
	hOther headerKind = iota
	hContentLength
	hTransferEncoding
	hConnection
	hUpgrade
)

func kindOf(name []byte) headerKind {
	switch string(name) {
	case "content-length":
		return hContentLength
	case "transfer-encoding":
		return hTransferEncoding
	case "connection":
		return hConnection
	case "upgrade":
		return hUpgrade
	}
	return hOther
}
