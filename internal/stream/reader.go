package stream

import (
	"bytes"
	"io"
	"strings"
)

// Reader reassembles an SSE chunk stream produced by Writer. It is safe
// against arbitrary read boundaries: an incomplete trailing line is held
// back and prefixed onto the next read rather than decoded early, and any
// buffered data left at stream end is flushed.
type Reader struct {
	r    io.Reader
	rbuf []byte

	buf     []byte   // held-back partial line
	pending []string // data lines of the event being assembled
	out     []string // decoded chunks ready for delivery

	eof    bool // underlying reader exhausted
	closed bool // [DONE] seen
}

// NewReader wraps r for chunk reassembly.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, rbuf: make([]byte, 4096)}
}

// Next returns the next decoded chunk. It returns io.EOF after the [DONE]
// sentinel or the end of the underlying stream.
func (sr *Reader) Next() (string, error) {
	for {
		if len(sr.out) > 0 {
			chunk := sr.out[0]
			sr.out = sr.out[1:]
			return chunk, nil
		}
		if sr.closed {
			return "", io.EOF
		}
		if sr.eof {
			sr.flushTail()
			sr.closed = true
			continue
		}

		n, err := sr.r.Read(sr.rbuf)
		if n > 0 {
			sr.feed(sr.rbuf[:n])
		}
		if err == io.EOF {
			sr.eof = true
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

// ReadAll drains the stream and returns the concatenated answer text.
func (sr *Reader) ReadAll() (string, error) {
	var b strings.Builder
	for {
		chunk, err := sr.Next()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

// feed appends inbound bytes and decodes all complete lines.
func (sr *Reader) feed(p []byte) {
	sr.buf = append(sr.buf, p...)
	for {
		i := bytes.IndexByte(sr.buf, '\n')
		if i < 0 {
			return
		}
		line := string(sr.buf[:i])
		sr.buf = sr.buf[i+1:]
		sr.processLine(strings.TrimSuffix(line, "\r"))
	}
}

// processLine handles one complete line: data lines accumulate into the
// current event, a blank line dispatches it. Other SSE fields (comments,
// event names, ids) are ignored.
func (sr *Reader) processLine(line string) {
	if sr.closed {
		return
	}
	if line == "" {
		sr.dispatch()
		return
	}
	text, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return
	}
	// one optional leading space after the prefix
	text = strings.TrimPrefix(text, " ")
	sr.pending = append(sr.pending, text)
}

// dispatch completes the pending event. Lines within one event are joined
// with the newlines the writer split them on.
func (sr *Reader) dispatch() {
	if len(sr.pending) == 0 {
		return
	}
	event := strings.Join(sr.pending, "\n")
	sr.pending = nil

	if event == DoneSentinel {
		sr.closed = true
		return
	}
	sr.out = append(sr.out, event)
}

// flushTail decodes whatever is still buffered when the stream ends
// without a trailing newline or event terminator.
func (sr *Reader) flushTail() {
	if len(sr.buf) > 0 {
		sr.processLine(strings.TrimSuffix(string(sr.buf), "\r"))
		sr.buf = nil
	}
	sr.dispatch()
}
