package httpd

import (
	"fmt"

	"github.com/ssungk/ehttpd/pkg/httpd/buf"
	"github.com/ssungk/ehttpd/pkg/httpd/parser"
)

type assemblerState uint8

const (
	stateURL assemblerState = iota
	stateField
	stateValue
	stateHeadersDone
	stateBody
	stateOverflowed
)

// Header slots are allocated in batches.
const headerGrowth = 10

// messageInfo exposes the request-line metadata of the message being
// parsed. *parser.Parser implements it.
type messageInfo interface {
	Method() parser.Method
	ProtoMajor() int
	ProtoMinor() int
	Upgrade() bool
	KeepAlive() bool
}

// assembler collects the fragments of one message into a single buffer
// and records where each field lives. It implements parser.Callbacks.
type assembler struct {
	info    messageInfo
	deliver func(*Request)

	buffer  *buf.Buffer
	headers []header
	count   int
	state   assemblerState

	// 현재 필드 시작 위치
	mark    int
	uri     buf.Span
	uriSeen bool
	body    buf.Span
}

func newAssembler(limits buf.Limits, info messageInfo, deliver func(*Request)) *assembler {
	return &assembler{
		info:    info,
		deliver: deliver,
		buffer:  buf.New(limits),
	}
}

// setLimits applies to the next growth of the current buffer.
func (a *assembler) setLimits(limits buf.Limits) {
	a.buffer.SetLimits(limits)
}

func (a *assembler) overflowed() bool {
	return a.state == stateOverflowed
}

func (a *assembler) OnURL(p []byte) error {
	if a.state == stateOverflowed {
		return nil
	}

	off, err := a.buffer.Append(p)
	if err != nil {
		return a.overflow(err)
	}
	if !a.uriSeen {
		a.uri = a.buffer.Span(off, 0)
		a.uriSeen = true
	}
	a.uri.Length += len(p)
	return a.terminate()
}

func (a *assembler) OnHeaderField(p []byte) error {
	switch a.state {
	case stateOverflowed:
		return nil
	case stateValue:
		if err := a.finishValue(); err != nil {
			return err
		}
	case stateURL:
		if err := a.sealURL(); err != nil {
			return err
		}
	}

	if a.state != stateField {
		a.mark = a.buffer.Len()
		a.state = stateField
	}
	return a.appendField(p)
}

func (a *assembler) OnHeaderValue(p []byte) error {
	switch a.state {
	case stateOverflowed:
		return nil
	case stateField:
		if err := a.finishKey(); err != nil {
			return err
		}
	}
	return a.appendField(p)
}

func (a *assembler) OnHeadersComplete() error {
	switch a.state {
	case stateOverflowed:
		return nil
	case stateURL:
		if err := a.sealURL(); err != nil {
			return err
		}
	case stateField:
		// 값 없는 필드는 빈 값으로 기록
		if err := a.finishKey(); err != nil {
			return err
		}
		if err := a.finishValue(); err != nil {
			return err
		}
	case stateValue:
		if err := a.finishValue(); err != nil {
			return err
		}
	}
	a.state = stateHeadersDone
	return nil
}

func (a *assembler) OnBody(p []byte) error {
	if a.state == stateOverflowed {
		return nil
	}

	off, err := a.buffer.Append(p)
	if err != nil {
		return a.overflow(err)
	}
	if a.state != stateBody {
		a.body = a.buffer.Span(off, 0)
		a.state = stateBody
	}
	a.body.Length += len(p)
	return a.terminate()
}

func (a *assembler) OnMessageComplete() error {
	switch a.state {
	case stateOverflowed:
		return nil
	case stateValue:
		if err := a.finishValue(); err != nil {
			return err
		}
	}

	req := &Request{
		uri:     a.uri,
		body:    a.body,
		hasBody: a.state == stateBody,
		headers: a.headers[:a.count:a.count],
	}
	if a.info != nil {
		req.method = a.info.Method()
		req.major = a.info.ProtoMajor()
		req.minor = a.info.ProtoMinor()
		req.upgrade = a.info.Upgrade()
		req.keepAlive = a.info.KeepAlive()
	}

	// 버퍼 소유권 이전 후 다음 메시지를 위해 초기화
	req.buffer = a.buffer.Detach()
	a.reset()

	a.deliver(req)
	req.release()
	return nil
}

// abort discards the message in progress. No completion is delivered.
func (a *assembler) abort() {
	a.buffer.Release()
	a.reset()
}

func (a *assembler) reset() {
	a.headers = nil
	a.count = 0
	a.state = stateURL
	a.mark = 0
	a.uri = buf.Span{}
	a.uriSeen = false
	a.body = buf.Span{}
}

func (a *assembler) overflow(err error) error {
	a.buffer.Release()
	a.headers = nil
	a.count = 0
	a.state = stateOverflowed
	return fmt.Errorf("%w: %w", ErrOverflow, err)
}

func (a *assembler) appendField(p []byte) error {
	if _, err := a.buffer.Append(p); err != nil {
		return a.overflow(err)
	}
	return a.terminate()
}

func (a *assembler) terminate() error {
	if err := a.buffer.Terminate(); err != nil {
		return a.overflow(err)
	}
	return nil
}

func (a *assembler) seal() error {
	if _, err := a.buffer.Seal(); err != nil {
		return a.overflow(err)
	}
	return nil
}

func (a *assembler) sealURL() error {
	if !a.uriSeen {
		a.uri = a.buffer.Span(a.buffer.Len(), 0)
		a.uriSeen = true
	}
	return a.seal()
}

// finishKey closes the current key and opens a header entry for it.
func (a *assembler) finishKey() error {
	key := a.buffer.Span(a.mark, a.buffer.Len()-a.mark)
	if err := a.seal(); err != nil {
		return err
	}

	if a.count == len(a.headers) {
		a.headers = append(a.headers, make([]header, headerGrowth)...)
	}
	a.headers[a.count].key = key
	a.mark = a.buffer.Len()
	a.state = stateValue
	return nil
}

// finishValue closes the current value and completes its entry.
func (a *assembler) finishValue() error {
	value := a.buffer.Span(a.mark, a.buffer.Len()-a.mark)
	if err := a.seal(); err != nil {
		return err
	}

	a.headers[a.count].value = value
	a.count++
	a.mark = a.buffer.Len()
	a.state = stateField
	return nil
}
