// Package stream frames answer chunks for incremental delivery as
// server-sent events, and reassembles them losslessly on the client side.
//
// Each chunk becomes one event: every line of the chunk is written as a
// "data: <text>" line, the event is terminated by a blank line, and the
// stream ends with a [DONE] sentinel event. Chunk boundaries carry no
// meaning beyond ordering; the concatenation of all decoded chunks equals
// the complete answer regardless of how the bytes were split in transit.
package stream

import (
	"io"
	"net/http"
	"strings"
)

// DoneSentinel terminates a stream. Mirrors the OpenAI-style SSE contract.
const DoneSentinel = "[DONE]"

// Writer frames chunks onto an io.Writer. When the writer is an
// http.ResponseWriter that supports flushing, every event is flushed
// immediately so slow consumers see tokens as they are produced.
type Writer struct {
	w     io.Writer
	flush func()
}

// NewWriter wraps w for SSE output.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

// PrepareHeaders sets the response headers for an event stream.
func PrepareHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteChunk emits one chunk as a single event. Empty chunks are skipped.
// A chunk whose text equals the sentinel is split across two events so the
// reader never mistakes answer content for end-of-stream; event boundaries
// carry no meaning, so reassembly is unaffected.
func (sw *Writer) WriteChunk(text string) error {
	if text == "" {
		return nil
	}
	if text == DoneSentinel {
		if err := sw.WriteChunk(text[:1]); err != nil {
			return err
		}
		return sw.WriteChunk(text[1:])
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if _, err := io.WriteString(sw.w, b.String()); err != nil {
		return err
	}
	if sw.flush != nil {
		sw.flush()
	}
	return nil
}

// Done emits the end-of-stream sentinel.
func (sw *Writer) Done() error {
	if _, err := io.WriteString(sw.w, "data: "+DoneSentinel+"\n\n"); err != nil {
		return err
	}
	if sw.flush != nil {
		sw.flush()
	}
	return nil
}
