// ABOUTME: Incremental newline-delimited line decoder for chunked response bodies
// ABOUTME: Chunk boundaries are arbitrary; output is identical however bytes are split

// Package stream turns an arbitrarily chunked byte stream into complete
// event lines. The decoder is a pure function of its accumulated buffer
// and never blocks.
package stream

import (
	"bytes"
	"strings"
)

// Decoder accumulates bytes across feeds and yields complete,
// newline-terminated lines with the terminator stripped. Blank lines
// are dropped. A trailing partial line stays buffered until its
// terminator arrives.
type Decoder struct {
	buf bytes.Buffer
}

// Feed appends a chunk and returns every complete line now available,
// in order. Feeding "ab" then "c\n" yields the same single line "abc"
// as feeding "abc\n" at once.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf.Write(chunk)

	var lines []string
	for {
		data := d.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		d.buf.Next(idx + 1)

		// Tolerate CRLF terminators and skip blank keepalive lines.
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Flush returns the buffered remainder as a final line, if the stream
// ended without a trailing terminator. Blank remainders report false.
// The buffer is reset either way.
func (d *Decoder) Flush() (string, bool) {
	line := strings.TrimSuffix(d.buf.String(), "\r")
	d.buf.Reset()
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (d *Decoder) Pending() int {
	return d.buf.Len()
}

// Reset discards any buffered partial line, ready for a new stream.
func (d *Decoder) Reset() {
	d.buf.Reset()
}
