// Package parser is an incremental HTTP/1.x request parser.
//
// The parser never buffers message bytes. Execute walks whatever data it is
// given and reports each field as one or more fragments through Callbacks;
// a fragment always points into the slice passed to the current Execute
// call. The only bytes the parser keeps are trailing header whitespace
// that may or may not end the value, plus the values of the few headers
// that decide message framing.
package parser

import "bytes"

const (
	maxMethodLen    = 16
	maxTrackedValue = 1024
	maxPendingSpace = 4096
	maxChunkSize    = 1 << 56
	maxContentLen   = 1 << 62
)

var emptyValue = []byte{}

// Callbacks receives parse events in wire order. A non-nil error stops
// Execute, which returns that error unchanged.
type Callbacks interface {
	OnURL(p []byte) error
	OnHeaderField(p []byte) error
	OnHeaderValue(p []byte) error
	OnHeadersComplete() error
	OnBody(p []byte) error
	OnMessageComplete() error
}

// Parser holds the state of one connection's request stream.
type Parser struct {
	cb    Callbacks
	state state
	err   error

	methodBuf  [maxMethodLen]byte
	methodLen  int
	versionBuf [8]byte
	versionLen int

	name       [24]byte
	nameLen    int
	kind       headerKind
	valueSeen  bool
	value      []byte
	pendingOWS []byte

	method        Method
	major, minor  uint8
	contentLength int64
	hasTE         bool
	chunked       bool
	connClose     bool
	connKeepAlive bool
	connUpgrade   bool
	hasUpgrade    bool
	upgrade       bool
	keepAlive     bool

	remaining   int64
	chunkSize   int64
	chunkDigits int
}

// New creates a parser that reports to cb.
func New(cb Callbacks) *Parser {
	p := &Parser{cb: cb}
	p.Reset()
	return p
}

// Reset discards all state, including a previous error.
func (p *Parser) Reset() {
	p.state = sStart
	p.err = nil
	p.value = p.value[:0]
	p.pendingOWS = p.pendingOWS[:0]
	p.beginMessage()
}

// Method returns the method of the current message.
func (p *Parser) Method() Method { return p.method }

// ProtoMajor returns the major protocol version of the current message.
func (p *Parser) ProtoMajor() int { return int(p.major) }

// ProtoMinor returns the minor protocol version of the current message.
func (p *Parser) ProtoMinor() int { return int(p.minor) }

// Upgrade reports whether the current message asks for a protocol switch.
// Valid from OnHeadersComplete on.
func (p *Parser) Upgrade() bool { return p.upgrade }

// KeepAlive reports whether the connection should stay open after the
// current message. Valid from OnHeadersComplete on.
func (p *Parser) KeepAlive() bool { return p.keepAlive }

// ContentLength returns the declared body length, or -1 if none was sent.
func (p *Parser) ContentLength() int64 { return p.contentLength }

// Chunked reports whether the body uses chunked transfer coding.
func (p *Parser) Chunked() bool { return p.chunked }

func (p *Parser) beginMessage() {
	p.methodLen = 0
	p.versionLen = 0
	p.method = MethodUnknown
	p.major, p.minor = 0, 0
	p.contentLength = -1
	p.hasTE = false
	p.chunked = false
	p.connClose = false
	p.connKeepAlive = false
	p.connUpgrade = false
	p.hasUpgrade = false
	p.upgrade = false
	p.keepAlive = false
	p.remaining = 0
}

func (p *Parser) fail(i int, err error) (int, error) {
	p.state = sDead
	p.err = err
	return i, err
}

// Execute parses data and returns the number of bytes consumed. On
// success the whole slice is consumed. Once an error has been returned,
// every later call returns it again until Reset.
func (p *Parser) Execute(data []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}

	i := 0
	for i < len(data) {
		c := data[i]

		switch p.state {
		case sStart:
			// 파이프라인 사이의 빈 줄 허용
			if c == '\r' || c == '\n' {
				i++
				continue
			}
			p.beginMessage()
			p.state = sMethod

		case sMethod:
			if c == ' ' {
				p.method = ParseMethod(p.methodBuf[:p.methodLen])
				if p.method == MethodUnknown {
					return p.fail(i, malformed(ErrInvalidMethod))
				}
				p.state = sURLStart
				i++
				continue
			}
			if !isToken(c) || p.methodLen == maxMethodLen {
				return p.fail(i, malformed(ErrInvalidMethod))
			}
			p.methodBuf[p.methodLen] = c
			p.methodLen++
			i++

		case sURLStart:
			if !isURLChar(c) {
				return p.fail(i, malformed(ErrInvalidURL))
			}
			p.state = sURL

		case sURL:
			start := i
			for i < len(data) && isURLChar(data[i]) {
				i++
			}
			if i > start {
				if err := p.cb.OnURL(data[start:i]); err != nil {
					return p.fail(i, err)
				}
			}
			if i == len(data) {
				break
			}
			if data[i] != ' ' {
				return p.fail(i, malformed(ErrInvalidURL))
			}
			p.state = sVersion
			i++

		case sVersion:
			p.versionBuf[p.versionLen] = c
			p.versionLen++
			i++
			if p.versionLen == len(p.versionBuf) {
				if err := p.parseVersion(); err != nil {
					return p.fail(i, err)
				}
				p.state = sRequestLineCR
			}

		case sRequestLineCR:
			switch c {
			case '\r':
				p.state = sRequestLineLF
			case '\n':
				p.state = sHeaderStart
			default:
				return p.fail(i, malformed(ErrMissingCarriageReturn))
			}
			i++

		case sRequestLineLF:
			if c != '\n' {
				return p.fail(i, malformed(ErrMissingLineFeed))
			}
			p.state = sHeaderStart
			i++

		case sHeaderStart:
			switch {
			case c == '\r':
				p.state = sHeadersLF
				i++
			case c == '\n':
				i++
				if err := p.headersDone(); err != nil {
					return p.fail(i, err)
				}
			case isToken(c):
				p.nameLen = 0
				p.valueSeen = false
				p.state = sHeaderField
			default:
				return p.fail(i, malformed(ErrInvalidHeaderToken))
			}

		case sHeaderField:
			start := i
			for i < len(data) && isToken(data[i]) {
				if p.nameLen < len(p.name) {
					p.name[p.nameLen] = toLower(data[i])
				}
				p.nameLen++
				i++
			}
			if i > start {
				if err := p.cb.OnHeaderField(data[start:i]); err != nil {
					return p.fail(i, err)
				}
			}
			if i == len(data) {
				break
			}
			if data[i] != ':' {
				return p.fail(i, malformed(ErrInvalidHeaderToken))
			}
			p.kind = hOther
			if p.nameLen <= len(p.name) {
				p.kind = kindOf(p.name[:p.nameLen])
			}
			p.state = sHeaderValueStart
			i++

		case sHeaderValueStart:
			if isSpace(c) {
				i++
				continue
			}
			p.state = sHeaderValue

		case sHeaderValue:
			start := i
			for i < len(data) && data[i] != '\r' && data[i] != '\n' {
				if !isValueChar(data[i]) {
					return p.fail(i, malformed(ErrInvalidHeaderValue))
				}
				i++
			}
			if err := p.valueRun(data[start:i], i == len(data)); err != nil {
				return p.fail(i, err)
			}
			if i == len(data) {
				break
			}
			if data[i] == '\r' {
				p.state = sHeaderValueLF
				i++
				break
			}
			i++
			if err := p.headerDone(); err != nil {
				return p.fail(i, err)
			}
			p.state = sHeaderStart

		case sHeaderValueLF:
			if c != '\n' {
				return p.fail(i, malformed(ErrMissingLineFeed))
			}
			i++
			if err := p.headerDone(); err != nil {
				return p.fail(i, err)
			}
			p.state = sHeaderStart

		case sHeadersLF:
			if c != '\n' {
				return p.fail(i, malformed(ErrMissingLineFeed))
			}
			i++
			if err := p.headersDone(); err != nil {
				return p.fail(i, err)
			}

		case sBody:
			n := min(int64(len(data)-i), p.remaining)
			if err := p.cb.OnBody(data[i : i+int(n)]); err != nil {
				return p.fail(i, err)
			}
			i += int(n)
			p.remaining -= n
			if p.remaining == 0 {
				if err := p.messageDone(); err != nil {
					return p.fail(i, err)
				}
			}

		case sChunkSize:
			if v, ok := unhex(c); ok {
				p.chunkSize = p.chunkSize<<4 | int64(v)
				p.chunkDigits++
				if p.chunkSize > maxChunkSize {
					return p.fail(i, malformed(ErrInvalidChunkSize))
				}
				i++
				continue
			}
			if p.chunkDigits == 0 {
				return p.fail(i, malformed(ErrInvalidChunkSize))
			}
			switch {
			case c == '\r':
				p.state = sChunkSizeLF
			case c == ';' || isSpace(c):
				p.state = sChunkExt
			default:
				return p.fail(i, malformed(ErrInvalidChunkSize))
			}
			i++

		case sChunkExt:
			// 확장은 무시
			if c == '\r' {
				p.state = sChunkSizeLF
			}
			i++

		case sChunkSizeLF:
			if c != '\n' {
				return p.fail(i, malformed(ErrMissingLineFeed))
			}
			i++
			if p.chunkSize == 0 {
				p.state = sTrailerStart
			} else {
				p.remaining = p.chunkSize
				p.state = sChunkData
			}

		case sChunkData:
			n := min(int64(len(data)-i), p.remaining)
			if err := p.cb.OnBody(data[i : i+int(n)]); err != nil {
				return p.fail(i, err)
			}
			i += int(n)
			p.remaining -= n
			if p.remaining == 0 {
				p.state = sChunkDataCR
			}

		case sChunkDataCR:
			if c != '\r' {
				return p.fail(i, malformed(ErrMissingCarriageReturn))
			}
			p.state = sChunkDataLF
			i++

		case sChunkDataLF:
			if c != '\n' {
				return p.fail(i, malformed(ErrMissingLineFeed))
			}
			p.chunkSize = 0
			p.chunkDigits = 0
			p.state = sChunkSize
			i++

		case sTrailerStart:
			switch c {
			case '\r':
				p.state = sTrailersLF
				i++
			case '\n':
				i++
				if err := p.messageDone(); err != nil {
					return p.fail(i, err)
				}
			default:
				p.state = sTrailer
			}

		case sTrailer:
			// 트레일러는 버림
			if c == '\n' {
				p.state = sTrailerStart
			}
			i++

		case sTrailersLF:
			if c != '\n' {
				return p.fail(i, malformed(ErrMissingLineFeed))
			}
			i++
			if err := p.messageDone(); err != nil {
				return p.fail(i, err)
			}

		case sDead:
			return i, p.err
		}

		if p.upgrade && p.state == sStart {
			return p.fail(i, ErrUpgrade)
		}
	}

	return i, nil
}

func (p *Parser) parseVersion() error {
	v := p.versionBuf[:]
	if string(v[:5]) != "HTTP/" || !isDigit(v[5]) || v[6] != '.' || !isDigit(v[7]) {
		return malformed(ErrInvalidVersion)
	}
	p.major, p.minor = v[5]-'0', v[7]-'0'
	if p.major != 1 || p.minor > 1 {
		return malformed(ErrInvalidVersion)
	}
	return nil
}

// valueRun reports one run of header value bytes. Trailing whitespace is
// held back until it is known not to end the value.
func (p *Parser) valueRun(run []byte, atEnd bool) error {
	trimmed := trimRightSpace(run)
	if len(trimmed) > 0 {
		if len(p.pendingOWS) > 0 {
			if err := p.emitValue(p.pendingOWS); err != nil {
				return err
			}
			p.pendingOWS = p.pendingOWS[:0]
		}
		if err := p.emitValue(trimmed); err != nil {
			return err
		}
	}

	if !atEnd {
		p.pendingOWS = p.pendingOWS[:0]
		return nil
	}
	p.pendingOWS = append(p.pendingOWS, run[len(trimmed):]...)
	if len(p.pendingOWS) > maxPendingSpace {
		return malformed(ErrInvalidHeaderValue)
	}
	return nil
}

func (p *Parser) emitValue(b []byte) error {
	p.valueSeen = true
	if p.kind != hOther {
		if len(p.value)+len(b) > maxTrackedValue {
			return malformed(ErrInvalidHeaderValue)
		}
		p.value = append(p.value, b...)
	}
	return p.cb.OnHeaderValue(b)
}

// headerDone runs at the end of each header line.
func (p *Parser) headerDone() error {
	if !p.valueSeen {
		if err := p.emitValue(emptyValue); err != nil {
			return err
		}
	}

	v := p.value
	p.value = p.value[:0]

	switch p.kind {
	case hContentLength:
		n, ok := parseContentLength(v)
		if !ok {
			return malformed(ErrInvalidContentLength)
		}
		if p.contentLength >= 0 && p.contentLength != n {
			return malformed(ErrInvalidContentLength)
		}
		p.contentLength = n
	case hTransferEncoding:
		p.hasTE = true
		p.chunked = bytes.EqualFold(lastToken(v), []byte("chunked"))
	case hConnection:
		for len(v) > 0 {
			var tok []byte
			tok, v = nextToken(v)
			switch {
			case bytes.EqualFold(tok, []byte("close")):
				p.connClose = true
			case bytes.EqualFold(tok, []byte("keep-alive")):
				p.connKeepAlive = true
			case bytes.EqualFold(tok, []byte("upgrade")):
				p.connUpgrade = true
			}
		}
	case hUpgrade:
		p.hasUpgrade = true
	}
	return nil
}

func (p *Parser) headersDone() error {
	if p.hasTE {
		if p.contentLength >= 0 {
			return malformed(ErrUnexpectedContentLength)
		}
		if !p.chunked {
			return malformed(ErrInvalidTransferEncoding)
		}
	}

	p.upgrade = p.method == MethodConnect || (p.connUpgrade && p.hasUpgrade)
	if p.minor >= 1 {
		p.keepAlive = !p.connClose
	} else {
		p.keepAlive = p.connKeepAlive
	}

	if err := p.cb.OnHeadersComplete(); err != nil {
		return err
	}

	switch {
	case p.upgrade:
		return p.messageDone()
	case p.chunked:
		p.chunkSize = 0
		p.chunkDigits = 0
		p.state = sChunkSize
	case p.contentLength > 0:
		p.remaining = p.contentLength
		p.state = sBody
	default:
		return p.messageDone()
	}
	return nil
}

func (p *Parser) messageDone() error {
	p.state = sStart
	return p.cb.OnMessageComplete()
}

func parseContentLength(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if !isDigit(c) {
			return 0, false
		}
		n = n*10 + int64(c-'0')
		if n > maxContentLen {
			return 0, false
		}
	}
	return n, true
}

func nextToken(v []byte) (tok, rest []byte) {
	if i := bytes.IndexByte(v, ','); i >= 0 {
		return bytes.TrimSpace(v[:i]), v[i+1:]
	}
	return bytes.TrimSpace(v), nil
}

func lastToken(v []byte) []byte {
	if i := bytes.LastIndexByte(v, ','); i >= 0 {
		v = v[i+1:]
	}
	return bytes.TrimSpace(v)
}
