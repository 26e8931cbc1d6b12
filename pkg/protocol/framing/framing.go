// Package framing splits a TCP byte stream into packets.
//
// Wire format:
//
//	MARKER (N bytes) | LENGTH (4 bytes, big-endian) | PAYLOAD (LENGTH bytes)
//
// The marker lets the decoder re-synchronize after garbage: any bytes in
// front of the next marker are dropped. Bytes of an incomplete packet are
// carried over to the next Feed call.
package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// LengthSize is the width of the length field.
const LengthSize = 4

// DefaultMaxPacketSize bounds a single payload.
const DefaultMaxPacketSize = 1 << 20 // 1MB

var (
	// ErrDepthExceeded is returned when one chunk holds more packets than
	// the configured depth allows. Packets already emitted stay emitted.
	ErrDepthExceeded = errors.New("framing: maximum packet depth exceeded")

	// ErrPacketTooLarge is returned when a length field exceeds the
	// configured maximum packet size.
	ErrPacketTooLarge = errors.New("framing: packet too large")
)

// Decoder reassembles packets for one connection. It is not safe for
// concurrent use; each connection owns its own Decoder.
type Decoder struct {
	marker        []byte
	maxDepth      int
	maxPacketSize int
	buf           []byte
}

// NewDecoder creates a decoder. maxDepth is the number of packets that may
// follow the first one inside a single chunk.
func NewDecoder(marker []byte, maxDepth, maxPacketSize int) (*Decoder, error) {
	if len(marker) == 0 {
		return nil, errors.New("framing: marker must not be empty")
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("framing: invalid max depth %d", maxDepth)
	}
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}

	return &Decoder{
		marker:        bytes.Clone(marker),
		maxDepth:      maxDepth,
		maxPacketSize: maxPacketSize,
	}, nil
}

// Feed appends chunk to the carried-over bytes and emits every complete
// packet, in stream order. Emitted payloads are copies owned by the
// receiver.
//
// On ErrDepthExceeded or ErrPacketTooLarge the connection is considered
// desynchronized: the buffered bytes are dropped and the caller is
// expected to disconnect.
func (d *Decoder) Feed(chunk []byte, emit func(payload []byte)) error {
	d.buf = append(d.buf, chunk...)

	headerSize := len(d.marker) + LengthSize
	offset := 0
	depth := 0

	for {
		idx := bytes.Index(d.buf[offset:], d.marker)
		if idx < 0 {
			// Keep a possible marker prefix at the tail.
			keep := len(d.marker) - 1
			if rest := len(d.buf) - offset; rest < keep {
				keep = rest
			}
			offset = len(d.buf) - keep
			break
		}
		offset += idx

		if len(d.buf)-offset < headerSize {
			break
		}

		length := binary.BigEndian.Uint32(d.buf[offset+len(d.marker) : offset+headerSize])
		if uint64(length) > uint64(d.maxPacketSize) {
			d.Reset()
			return fmt.Errorf("%w: %d bytes (max %d)", ErrPacketTooLarge, length, d.maxPacketSize)
		}

		end := offset + headerSize + int(length)
		if end > len(d.buf) {
			break
		}

		emit(bytes.Clone(d.buf[offset+headerSize : end]))
		offset = end

		if offset == len(d.buf) {
			break
		}

		depth++
		if depth > d.maxDepth {
			d.Reset()
			return fmt.Errorf("%w: depth %d > %d", ErrDepthExceeded, depth, d.maxDepth)
		}
	}

	d.compact(offset)
	return nil
}

func (d *Decoder) compact(offset int) {
	if offset == 0 {
		return
	}
	n := copy(d.buf, d.buf[offset:])
	d.buf = d.buf[:n]
}

// Buffered returns the number of carried-over bytes.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops any carried-over bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Encode builds a frame for payload.
func Encode(marker, payload []byte) []byte {
	frame := make([]byte, 0, len(marker)+LengthSize+len(payload))
	frame = append(frame, marker...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	return append(frame, payload...)
}
